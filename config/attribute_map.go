package config

import (
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// AttributeMap is a flat set of named parameters as loaded from a config file. Values keep
// whatever type the decoder produced (json numbers are float64); the typed accessors coerce.
type AttributeMap map[string]interface{}

// Has returns whether the key is present.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// Keys returns the keys in sorted order.
func (am AttributeMap) Keys() []string {
	keys := make([]string, 0, len(am))
	for k := range am {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float64 coerces the named value to a float64.
func (am AttributeMap) Float64(name string) (float64, error) {
	x, has := am[name]
	if !has {
		return 0, errMissing
	}
	return cast.ToFloat64E(x)
}

// Int coerces the named value to an int. Whole floats are accepted, fractional ones are not.
func (am AttributeMap) Int(name string) (int, error) {
	x, has := am[name]
	if !has {
		return 0, errMissing
	}
	if f, ok := x.(float64); ok {
		if f != float64(int(f)) {
			return 0, errors.Errorf("wanted an int but got %v", f)
		}
		return int(f), nil
	}
	return cast.ToIntE(x)
}

// Bool coerces the named value to a bool. Strings such as "true" and "0" are accepted.
func (am AttributeMap) Bool(name string) (bool, error) {
	x, has := am[name]
	if !has {
		return false, errMissing
	}
	return cast.ToBoolE(x)
}

// String coerces the named value to a string.
func (am AttributeMap) String(name string) (string, error) {
	x, has := am[name]
	if !has {
		return "", errMissing
	}
	return cast.ToStringE(x)
}

// Float64Or returns the coerced value or def when the key is absent. A present but malformed
// value is still an error.
func (am AttributeMap) Float64Or(name string, def float64) (float64, error) {
	if !am.Has(name) || am[name] == nil {
		return def, nil
	}
	return am.Float64(name)
}

// Decode copies the attributes onto the json-tagged fields of out. Fields without a matching
// key keep their current value, so out can be pre-filled with defaults.
func (am AttributeMap) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}(am))
}

var errMissing = errors.New("missing")
