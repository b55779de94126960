package types

import (
	"fmt"
	"strconv"
	"strings"
)

// FeaturePrefix starts every feature flag key.
const FeaturePrefix = "HW_ENABLE_"

// Symbol is one named, typed configuration value together with the layer
// that defined it.
type Symbol struct {
	Name string
	Kind Kind

	// Value holds a string, int64 or bool. It is nil while Ref names a
	// symbol that has not been resolved.
	Value any

	// Ref is the key this symbol's declaration points at, or empty for a
	// literal declaration.
	Ref string

	// Instance is the peripheral instance a PIN_REF or parameter key
	// belongs to (e.g. "i2c0"). Empty for identity and feature keys.
	Instance string

	Layer  string
	Tier   Tier
	Source string
	Line   int // 1-based; 0 when the definition was not read from a file.

	Fixed  bool // cannot be overridden by a higher layer with a different value
	Shared bool // pin may be claimed by other shared bindings
}

// Int returns the value as an integer.
func (s Symbol) Int() (int64, bool) {
	v, ok := s.Value.(int64)
	return v, ok
}

// Bool returns the value as a boolean. Integers 0 and 1 are accepted.
func (s Symbol) Bool() (bool, bool) {
	switch v := s.Value.(type) {
	case bool:
		return v, true
	case int64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	}
	return false, false
}

// Text returns the value as a string.
func (s Symbol) Text() (string, bool) {
	v, ok := s.Value.(string)
	return v, ok
}

// Canonical renders the declared value in a stable textual form. Two
// declarations are considered equal when their canonical forms match.
func (s Symbol) Canonical() string {
	if s.Kind == KindBoolean {
		if b, ok := s.Bool(); ok {
			return strconv.FormatBool(b)
		}
	}
	switch v := s.Value.(type) {
	case nil:
		if s.Ref != "" {
			return "&" + s.Ref
		}
		return "<nil>"
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Origin describes where the symbol was defined, e.g. "board (mpconfigboard.h:7)".
func (s Symbol) Origin() string {
	switch {
	case s.Source != "" && s.Line > 0:
		return fmt.Sprintf("%s (%s:%d)", s.Layer, s.Source, s.Line)
	case s.Source != "":
		return fmt.Sprintf("%s (%s)", s.Layer, s.Source)
	default:
		return s.Layer
	}
}

// PinBinding is the typed view of a PIN_REF symbol.
type PinBinding struct {
	Role     string // logical role, the symbol name (e.g. HW_I2C0_SCL)
	Pin      int
	Instance string
	Shared   bool
	Layer    string
}

// PinBinding returns the binding view of s. It reports false when s is not
// a PIN_REF or its value is not an integer.
func (s Symbol) PinBinding() (PinBinding, bool) {
	if s.Kind != KindPinRef {
		return PinBinding{}, false
	}
	pin, ok := s.Int()
	if !ok {
		return PinBinding{}, false
	}
	return PinBinding{
		Role:     s.Name,
		Pin:      int(pin),
		Instance: s.Instance,
		Shared:   s.Shared,
		Layer:    s.Layer,
	}, true
}

// FeatureFlag is the typed view of a HW_ENABLE_<FEATURE> symbol.
type FeatureFlag struct {
	Name    string
	Feature string
	Enabled bool
	Layer   string
}

// FeatureFlag returns the feature view of s. It reports false when s is not
// a boolean feature key or its value is not a valid boolean.
func (s Symbol) FeatureFlag() (FeatureFlag, bool) {
	if s.Kind != KindBoolean || !strings.HasPrefix(s.Name, FeaturePrefix) {
		return FeatureFlag{}, false
	}
	enabled, ok := s.Bool()
	if !ok {
		return FeatureFlag{}, false
	}
	return FeatureFlag{
		Name:    s.Name,
		Feature: strings.TrimPrefix(s.Name, FeaturePrefix),
		Enabled: enabled,
		Layer:   s.Layer,
	}, true
}
