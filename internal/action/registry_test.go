package action_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/internal/action"
)

func noop(context.Context, action.Params) (action.Output, error) {
	return action.Output{Summary: "ok"}, nil
}

// stubDescriptors registers every action with a no-op handler, replacing
// the descriptors given in overrides.
func stubDescriptors(overrides ...action.Descriptor) []action.Descriptor {
	byAction := map[action.Action]action.Descriptor{}
	for _, d := range overrides {
		byAction[d.Action] = d
	}

	descs := make([]action.Descriptor, 0, len(action.All()))
	for _, a := range action.All() {
		if d, ok := byAction[a]; ok {
			descs = append(descs, d)
			continue
		}
		descs = append(descs, action.Descriptor{Action: a, Domain: action.DomainDevice, Handler: noop})
	}

	return descs
}

func TestAllIsUnique(t *testing.T) {
	t.Parallel()

	seen := map[action.Action]bool{}
	for _, a := range action.All() {
		assert.False(t, seen[a], "duplicate %s", a)
		seen[a] = true
	}
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	reg, err := action.NewRegistry(stubDescriptors()...)
	require.NoError(t, err)

	names := reg.Names()
	assert.Len(t, names, len(action.All()))
	assert.IsIncreasing(t, names)

	d, ok := reg.Lookup("get_events")
	require.True(t, ok)
	assert.Equal(t, action.GetEvents, d.Action)

	_, ok = reg.Lookup("GET_EVENTS")
	assert.False(t, ok, "lookup is case-sensitive")
}

func TestNewRegistryRejects(t *testing.T) {
	t.Parallel()

	all := stubDescriptors()

	tests := []struct {
		name  string
		descs []action.Descriptor
		want  string
	}{
		{
			name:  "missing descriptor",
			descs: all[1:],
			want:  "has no descriptor",
		},
		{
			name:  "duplicate descriptor",
			descs: append(stubDescriptors(), all[0]),
			want:  "registered twice",
		},
		{
			name:  "unknown action",
			descs: append(stubDescriptors(), action.Descriptor{Action: "reboot_universe", Handler: noop}),
			want:  "unknown action",
		},
		{
			name:  "nil handler",
			descs: stubDescriptors(action.Descriptor{Action: action.GetDevices}),
			want:  "has no handler",
		},
		{
			name: "duplicate parameter",
			descs: stubDescriptors(action.Descriptor{
				Action:   action.RestartDevice,
				Handler:  noop,
				Required: []action.Param{{Name: "mac", Kind: action.KindMAC}},
				Optional: []action.Param{{Name: "mac", Kind: action.KindString}},
			}),
			want: "declares parameter \"mac\" twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := action.NewRegistry(tt.descs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	reg, err := action.NewRegistry(stubDescriptors(action.Descriptor{
		Action:      action.GetEvents,
		Domain:      action.DomainMonitoring,
		Description: "Recent controller events",
		Handler:     noop,
		Optional: []action.Param{
			{Name: "limit", Kind: action.KindInt, Default: 100, Constraints: []action.Constraint{action.Min(1), action.Max(3000)}},
		},
	})...)
	require.NoError(t, err)

	catalog := reg.Catalog()
	require.Len(t, catalog, len(action.All()))

	var events action.Entry
	for _, e := range catalog {
		if e.Action == "get_events" {
			events = e
		}
	}

	assert.Equal(t, "monitoring", events.Domain)
	require.Len(t, events.Optional, 1)
	assert.Equal(t, "integer", events.Optional[0].Type)
	assert.Equal(t, 100, events.Optional[0].Default)
	assert.Equal(t, []string{"min 1", "max 3000"}, events.Optional[0].Constraints)
}
