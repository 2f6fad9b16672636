package action

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/controller"
)

// Kind is the value type of a parameter.
type Kind int

// Parameter kinds.
const (
	KindString Kind = iota
	KindInt
	KindBool
	// KindMAC is a string normalized to lower-case colon form.
	KindMAC
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindMAC:
		return "mac"
	default:
		return "unknown"
	}
}

// Param declares one action parameter.
type Param struct {
	Name        string
	Kind        Kind
	Description string

	// Default is used when an optional parameter is absent. Nil leaves it unset.
	Default any

	Constraints []Constraint
}

// Constraint is a predicate over an already coerced value.
type Constraint struct {
	name  string
	check func(any) bool
}

// String describes the constraint, e.g. "min 1".
func (c Constraint) String() string { return c.name }

// Allows reports whether v satisfies the constraint.
func (c Constraint) Allows(v any) bool { return c.check(v) }

// Min requires an integer of at least n.
func Min(n int) Constraint {
	return Constraint{
		name: fmt.Sprintf("min %d", n),
		check: func(v any) bool {
			i, ok := v.(int)
			return ok && i >= n
		},
	}
}

// Max requires an integer of at most n.
func Max(n int) Constraint {
	return Constraint{
		name: fmt.Sprintf("max %d", n),
		check: func(v any) bool {
			i, ok := v.(int)
			return ok && i <= n
		},
	}
}

// OneOf requires a string equal to one of values.
func OneOf(values ...string) Constraint {
	return Constraint{
		name: "one of [" + strings.Join(values, ", ") + "]",
		check: func(v any) bool {
			s, ok := v.(string)
			return ok && slices.Contains(values, s)
		},
	}
}

// Matches requires a string matching pattern. It panics on an invalid pattern.
func Matches(pattern string) Constraint {
	re := regexp.MustCompile(pattern)

	return Constraint{
		name: "pattern " + pattern,
		check: func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		},
	}
}

// NonEmpty requires a string with a non-blank value.
func NonEmpty() Constraint {
	return Constraint{
		name: "non-empty",
		check: func(v any) bool {
			s, ok := v.(string)
			return ok && strings.TrimSpace(s) != ""
		},
	}
}

// blank reports whether a supplied value counts as missing.
func blank(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && strings.TrimSpace(s) == ""
}

// coerce converts a raw value to the Go type of kind: string, int or bool.
func coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindString:
		return coerceString(v)
	case KindInt:
		return coerceInt(v)
	case KindBool:
		return coerceBool(v)
	case KindMAC:
		s, err := coerceString(v)
		if err != nil {
			return nil, err
		}

		//nolint:wrapcheck // The caller reports the field
		return controller.NormalizeMAC(s.(string))
	default:
		return nil, errors.Newf("unsupported parameter kind %d", kind)
	}
}

func coerceString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(s), nil
	default:
		return nil, errors.Newf("expected a string, got %T", v)
	}
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, errors.Newf("expected an integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return nil, errors.Newf("expected an integer, got %q", n)
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, errors.Newf("expected an integer, got %q", n)
		}
		return i, nil
	default:
		return nil, errors.Newf("expected an integer, got %T", v)
	}
}

func coerceBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, errors.Newf("expected a boolean, got %q", b)
		}
		return parsed, nil
	default:
		return nil, errors.Newf("expected a boolean, got %T", v)
	}
}
