package action

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
)

// Output is what a handler produces on success.
type Output struct {
	Summary string
	Data    any
}

// Handler performs one action with validated parameters.
type Handler func(ctx context.Context, params Params) (Output, error)

// Descriptor is the contract of one action.
type Descriptor struct {
	Action      Action
	Domain      Domain
	Description string
	Required    []Param
	Optional    []Param
	Handler     Handler
}

// Registry is the immutable set of descriptors, one per Action.
type Registry struct {
	byName map[Action]Descriptor
	order  []Action
	names  []string
}

// NewRegistry builds a registry from descs. It fails unless every action
// returned by All is registered exactly once with a handler and no parameter
// is declared twice.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	known := All()

	r := &Registry{byName: make(map[Action]Descriptor, len(known))}

	for _, d := range descs {
		if !slices.Contains(known, d.Action) {
			return nil, errors.Newf("descriptor for unknown action %q", d.Action)
		}
		if _, dup := r.byName[d.Action]; dup {
			return nil, errors.Newf("action %q registered twice", d.Action)
		}
		if d.Handler == nil {
			return nil, errors.Newf("action %q has no handler", d.Action)
		}

		seen := map[string]bool{}
		for _, p := range slices.Concat(d.Required, d.Optional) {
			if p.Name == "" {
				return nil, errors.Newf("action %q declares an unnamed parameter", d.Action)
			}
			if seen[p.Name] {
				return nil, errors.Newf("action %q declares parameter %q twice", d.Action, p.Name)
			}
			seen[p.Name] = true
		}

		r.byName[d.Action] = d
	}

	for _, a := range known {
		if _, ok := r.byName[a]; !ok {
			return nil, errors.Newf("action %q has no descriptor", a)
		}
		r.order = append(r.order, a)
		r.names = append(r.names, string(a))
	}

	slices.Sort(r.names)

	return r, nil
}

// Lookup finds the descriptor for an exact, case-sensitive action name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[Action(name)]
	return d, ok
}

// Names returns all action names, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Descriptors returns all descriptors in All order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, r.byName[a])
	}

	return out
}

// ParamInfo is the serializable form of a Param.
type ParamInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// Entry is the serializable form of a Descriptor.
type Entry struct {
	Action      string      `json:"action"`
	Domain      string      `json:"domain"`
	Description string      `json:"description"`
	Required    []ParamInfo `json:"required,omitempty"`
	Optional    []ParamInfo `json:"optional,omitempty"`
}

// Catalog describes every action without handlers, for listing to callers.
func (r *Registry) Catalog() []Entry {
	entries := make([]Entry, 0, len(r.order))

	for _, d := range r.Descriptors() {
		entries = append(entries, Entry{
			Action:      string(d.Action),
			Domain:      string(d.Domain),
			Description: d.Description,
			Required:    paramInfos(d.Required),
			Optional:    paramInfos(d.Optional),
		})
	}

	return entries
}

func paramInfos(params []Param) []ParamInfo {
	if len(params) == 0 {
		return nil
	}

	infos := make([]ParamInfo, 0, len(params))
	for _, p := range params {
		info := ParamInfo{
			Name:        p.Name,
			Type:        p.Kind.String(),
			Description: p.Description,
			Default:     p.Default,
		}
		for _, c := range p.Constraints {
			info.Constraints = append(info.Constraints, c.String())
		}
		infos = append(infos, info)
	}

	return infos
}
