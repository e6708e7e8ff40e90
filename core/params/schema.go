package params

import (
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// Spec describes one accepted parameter.
type Spec struct {
	Kind    Kind
	Choices []string // allowed values for KindString, empty means any
}

// Schema lists every parameter a model accepts.
type Schema map[string]Spec

// Has reports whether name is a known parameter.
func (s Schema) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Validate checks names and kinds. Unknown names and kind mismatches are
// ConfigurationErrors; an int is accepted where a float is expected and an
// integral float where an int is expected.
func (s Schema) Validate(set Set) error {
	for _, name := range set.Keys() {
		v := set[name]
		spec, ok := s[name]
		if !ok {
			return errors.NewConfigurationError(name, "unknown parameter", v.Interface())
		}
		if err := spec.check(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (spec Spec) check(name string, v Value) error {
	switch spec.Kind {
	case KindInt:
		if _, ok := v.AsInt(); !ok {
			return errors.NewConfigurationError(name, "expected int", v.Interface())
		}
	case KindFloat:
		if _, ok := v.AsFloat(); !ok {
			return errors.NewConfigurationError(name, "expected float", v.Interface())
		}
	case KindString:
		str, ok := v.AsString()
		if !ok {
			return errors.NewConfigurationError(name, "expected string", v.Interface())
		}
		if len(spec.Choices) > 0 && !contains(spec.Choices, str) {
			return errors.NewConfigurationError(name, "unsupported choice", str)
		}
	case KindBool:
		if _, ok := v.AsBool(); !ok {
			return errors.NewConfigurationError(name, "expected bool", v.Interface())
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
