package action

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// SiteParam is the optional site selector declared by site-scoped actions.
const SiteParam = "site_name"

// Params holds validated, coerced parameter values keyed by name.
// Values are string, int or bool as declared by the parameter's Kind.
type Params map[string]any

// Has reports whether name was supplied or defaulted.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// String returns the string value of name, or "".
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Int returns the integer value of name, or 0.
func (p Params) Int(name string) int {
	i, _ := p[name].(int)
	return i
}

// Bool returns the boolean value of name, or false.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Site returns the site_name value.
func (p Params) Site() string {
	return p.String(SiteParam)
}

// Decode copies the parameters into the struct pointed to by out, matching
// `mapstructure` tags.
func (p Params) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to build parameter decoder")
	}

	if err := decoder.Decode(map[string]any(p)); err != nil {
		return errors.Wrap(err, "failed to decode parameters")
	}

	return nil
}
