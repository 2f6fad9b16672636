package handlers

import (
	"context"
	"fmt"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

func (h *Handlers) deviceActions() []action.Descriptor {
	return []action.Descriptor{
		{
			Action:      action.GetDevices,
			Domain:      action.DomainDevice,
			Description: "List adopted UniFi devices with their state",
			Optional:    []action.Param{siteParam()},
			Handler:     h.getDevices,
		},
		{
			Action:      action.GetDeviceByMAC,
			Domain:      action.DomainDevice,
			Description: "Show one device by MAC address",
			Required:    []action.Param{macParam("Device MAC address")},
			Optional:    []action.Param{siteParam()},
			Handler:     h.getDeviceByMAC,
		},
		{
			Action:      action.RestartDevice,
			Domain:      action.DomainDevice,
			Description: "Reboot a device",
			Required:    []action.Param{macParam("Device MAC address")},
			Optional:    []action.Param{siteParam()},
			Handler:     h.restartDevice,
		},
		{
			Action:      action.LocateDevice,
			Domain:      action.DomainDevice,
			Description: "Turn the locate LED of a device on or off",
			Required:    []action.Param{macParam("Device MAC address")},
			Optional: []action.Param{
				siteParam(),
				{Name: "enabled", Kind: action.KindBool, Default: true, Description: "true blinks the LED, false stops it"},
			},
			Handler: h.locateDevice,
		},
	}
}

func (h *Handlers) getDevices(ctx context.Context, p action.Params) (action.Output, error) {
	devices, err := siteList[controller.Device](ctx, h.client, p, "/stat/device")
	if err != nil {
		return action.Output{}, err
	}

	online := 0
	for _, d := range devices {
		if d.Online() {
			online++
		}
	}

	return action.Output{
		Summary: fmt.Sprintf("%d devices, %d online", len(devices), online),
		Data:    devices,
	}, nil
}

func (h *Handlers) getDeviceByMAC(ctx context.Context, p action.Params) (action.Output, error) {
	mac := p.String("mac")

	devices, err := siteList[controller.Device](ctx, h.client, p, "/stat/device")
	if err != nil {
		return action.Output{}, err
	}

	for _, d := range devices {
		if macEqual(d.MAC, mac) {
			state := "offline"
			if d.Online() {
				state = "online"
			}

			return action.Output{
				Summary: fmt.Sprintf("%s (%s %s) is %s", d.DisplayName(), d.Model, d.IP, state),
				Data:    d,
			}, nil
		}
	}

	return action.Output{}, &unifierr.NotFoundError{What: "device", ID: mac}
}

func (h *Handlers) restartDevice(ctx context.Context, p action.Params) (action.Output, error) {
	res, err := h.command(ctx, p, "devmgr", map[string]any{"cmd": "restart", "mac": p.String("mac")})
	if err != nil {
		return action.Output{}, err
	}

	return action.Output{Summary: "Restart requested for " + res.MAC, Data: res}, nil
}

func (h *Handlers) locateDevice(ctx context.Context, p action.Params) (action.Output, error) {
	cmd, verb := "set-locate", "enabled"
	if !p.Bool("enabled") {
		cmd, verb = "unset-locate", "disabled"
	}

	res, err := h.command(ctx, p, "devmgr", map[string]any{"cmd": cmd, "mac": p.String("mac")})
	if err != nil {
		return action.Output{}, err
	}

	return action.Output{Summary: fmt.Sprintf("Locate LED %s on %s", verb, res.MAC), Data: res}, nil
}
