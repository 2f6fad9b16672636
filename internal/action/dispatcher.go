package action

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/lexfrei/unifi-mcp/internal/unifierr"
	"github.com/lexfrei/unifi-mcp/observability"
)

// Request is one invocation: an action name and its raw parameters.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Result is the uniform outcome of Perform.
type Result struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Summary string `json:"summary"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// ErrorKind classifies Error, e.g. "missing_parameter".
	ErrorKind string `json:"error_kind,omitempty"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(metrics observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// Dispatcher validates requests against the registry and runs handlers.
// It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	logger   observability.Logger
	metrics  observability.MetricsRecorder
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   observability.NoopLogger(),
		metrics:  observability.NoopMetricsRecorder(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With(observability.Field{Key: "component", Value: "dispatcher"})

	return d
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Perform validates req and invokes the action's handler. Every failure,
// including a handler panic, is reported in the Result.
func (d *Dispatcher) Perform(ctx context.Context, req Request) Result {
	start := time.Now()
	logger := d.logger.With(
		observability.Field{Key: "action", Value: req.Action},
		observability.Field{Key: "invocation_id", Value: uuid.NewString()},
	)

	desc, ok := d.registry.Lookup(req.Action)
	if !ok {
		err := &unifierr.UnknownActionError{Action: req.Action, Valid: d.registry.Names()}
		logger.Warn("unknown action")
		d.metrics.RecordAction("unknown", false, time.Since(start))

		return failure(req.Action, err)
	}

	params, err := normalize(desc, req.Params, logger)
	if err != nil {
		logger.Info("rejected parameters", observability.Field{Key: "error", Value: err.Error()})
		d.metrics.RecordAction(req.Action, false, time.Since(start))

		return failure(req.Action, err)
	}

	logger.Debug("performing action")

	out, err := invoke(ctx, desc.Handler, params)
	duration := time.Since(start)
	d.metrics.RecordAction(req.Action, err == nil, duration)

	if err != nil {
		logger.Warn("action failed",
			observability.Field{Key: "error", Value: err.Error()},
			observability.Field{Key: "kind", Value: string(unifierr.KindOf(err))},
			observability.Field{Key: "duration", Value: duration},
		)

		return failure(req.Action, err)
	}

	logger.Info("action completed", observability.Field{Key: "duration", Value: duration})

	return Result{
		Success: true,
		Action:  req.Action,
		Summary: out.Summary,
		Data:    out.Data,
	}
}

func invoke(ctx context.Context, h Handler, params Params) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("handler panicked: %v", r)
		}
	}()

	return h(ctx, params)
}

func failure(name string, err error) Result {
	return Result{
		Success:   false,
		Action:    name,
		Summary:   fmt.Sprintf("%s failed", name),
		Error:     unifierr.Message(err),
		ErrorKind: string(unifierr.KindOf(err)),
	}
}

// normalize checks raw against desc and returns the coerced parameters:
// required present, defaults applied, kinds coerced, constraints satisfied.
func normalize(desc Descriptor, raw map[string]any, logger observability.Logger) (Params, error) {
	name := string(desc.Action)
	params := make(Params, len(desc.Required)+len(desc.Optional))

	for _, p := range desc.Required {
		v, ok := raw[p.Name]
		if !ok || blank(v) {
			return nil, &unifierr.MissingParameterError{Action: name, Field: p.Name}
		}

		coerced, err := check(name, p, v)
		if err != nil {
			return nil, err
		}
		params[p.Name] = coerced
	}

	for _, p := range desc.Optional {
		v, ok := raw[p.Name]
		if !ok || blank(v) {
			if p.Default == nil {
				continue
			}
			v = p.Default
		}

		coerced, err := check(name, p, v)
		if err != nil {
			return nil, err
		}
		params[p.Name] = coerced
	}

	for key := range raw {
		if _, declared := params[key]; !declared && !declares(desc, key) {
			logger.Debug("dropping undeclared parameter", observability.Field{Key: "param", Value: key})
		}
	}

	return params, nil
}

func check(action string, p Param, v any) (any, error) {
	coerced, err := coerce(p.Kind, v)
	if err != nil {
		return nil, &unifierr.InvalidParameterError{
			Action:     action,
			Field:      p.Name,
			Constraint: p.Kind.String(),
			Value:      v,
		}
	}

	for _, c := range p.Constraints {
		if !c.Allows(coerced) {
			return nil, &unifierr.InvalidParameterError{
				Action:     action,
				Field:      p.Name,
				Constraint: c.String(),
				Value:      coerced,
			}
		}
	}

	return coerced, nil
}

func declares(desc Descriptor, name string) bool {
	for _, p := range desc.Required {
		if p.Name == name {
			return true
		}
	}
	for _, p := range desc.Optional {
		if p.Name == name {
			return true
		}
	}

	return false
}
