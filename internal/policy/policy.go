// Package policy classifies configuration keys into the recognised
// namespaces, assigns their kinds, and holds the feature dependency sets and
// the keys that are fixed by policy.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Key namespace errors.
var (
	ErrMalformedKey     = errors.New("malformed key")
	ErrUnknownNamespace = errors.New("unknown key namespace")
)

// Namespace prefix every hardware key shares.
const hwPrefix = "HW_"

// Class is the namespace a key belongs to.
type Class int

// Key classes.
const (
	ClassIdentity Class = iota + 1
	ClassFeature
	ClassPin
	ClassParam
)

func (c Class) String() string {
	switch c {
	case ClassIdentity:
		return "identity"
	case ClassFeature:
		return "feature"
	case ClassPin:
		return "pin"
	case ClassParam:
		return "param"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Key is a classified configuration key.
type Key struct {
	Name       string // normalised name, prefixes stripped
	Class      Class
	Kind       types.Kind
	Peripheral string // upper-case peripheral type, e.g. "I2C"
	Instance   string // lower-case instance, e.g. "i2c0"
	Role       string // e.g. "SCL"
	Feature    string // feature name for HW_ENABLE_ keys
	Fixed      bool   // fixed by policy wherever it is first defined
}

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Policy enumerates the recognised key namespaces.
type Policy struct {
	// Prefixes are stripped from keys on input (e.g. "MICROPY_").
	Prefixes []string

	// Identity maps identity keys to whether policy fixes them.
	Identity map[string]bool

	// Peripherals lists the peripheral types of HW_<PERIPH>[N]_<ROLE> keys.
	Peripherals []string

	PinRoles   map[string]bool
	ParamRoles map[string]bool

	// Features maps a feature name to the keys it requires when enabled.
	Features map[string][]string
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		Prefixes: []string{"MICROPY_"},
		Identity: map[string]bool{
			"HW_BOARD_NAME": false,
			"HW_MCU_NAME":   true,
		},
		Peripherals: []string{
			"I2C", "I2S", "SPI", "UART", "CAN", "USB", "SDMMC", "PWM",
			"ADC", "DAC", "LED", "NEOPIXEL", "RMT", "ETH", "BUTTON",
		},
		PinRoles: set(
			"SCL", "SDA", "TX", "RX", "RTS", "CTS", "MOSI", "MISO", "SCK",
			"CS", "SDI", "SDO", "CLK", "CMD", "D0", "D1", "D2", "D3", "D4",
			"D5", "D6", "D7", "WS", "BCK", "DIN", "DOUT", "DP", "DM", "PIN",
			"EN", "INT", "RST", "IRQ", "MCLK",
		),
		ParamRoles: set("FREQ", "BAUD", "ADDR", "CHANNEL", "VID", "PID", "COUNT"),
		Features: map[string][]string{
			"UART_REPL": {"HW_UART_TX", "HW_UART_RX"},
			"USBDEV":    {"HW_USB_DP", "HW_USB_DM"},
			"SDCARD":    {"HW_SDMMC_CLK", "HW_SDMMC_CMD", "HW_SDMMC_D0"},
			"NEOPIXEL":  {"HW_NEOPIXEL_PIN"},
		},
	}
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Normalize strips a recognised prefix from name.
func (p *Policy) Normalize(name string) string {
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(name, prefix+hwPrefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// Classify normalises name and returns its key classification.
func (p *Policy) Classify(name string) (Key, error) {
	n := p.Normalize(name)
	if !keyPattern.MatchString(n) {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, name)
	}
	if !strings.HasPrefix(n, hwPrefix) {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, name)
	}

	if fixed, ok := p.Identity[n]; ok {
		return Key{Name: n, Class: ClassIdentity, Kind: types.KindString, Fixed: fixed}, nil
	}

	if strings.HasPrefix(n, types.FeaturePrefix) {
		feature := strings.TrimPrefix(n, types.FeaturePrefix)
		if feature == "" || strings.HasPrefix(feature, "_") {
			return Key{}, fmt.Errorf("%w: %q has no feature name", ErrMalformedKey, name)
		}
		return Key{Name: n, Class: ClassFeature, Kind: types.KindBoolean, Feature: feature}, nil
	}

	if key, ok := p.classifyPeripheral(n); ok {
		return key, nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, name)
}

// classifyPeripheral matches HW_<PERIPH>[N]_<ROLE>. Longer peripheral names
// are tried first so NEOPIXEL is not read as a prefix match of something
// shorter.
func (p *Policy) classifyPeripheral(n string) (Key, bool) {
	rest := strings.TrimPrefix(n, hwPrefix)

	periphs := make([]string, len(p.Peripherals))
	copy(periphs, p.Peripherals)
	sort.Slice(periphs, func(i, j int) bool {
		if len(periphs[i]) != len(periphs[j]) {
			return len(periphs[i]) > len(periphs[j])
		}
		return periphs[i] < periphs[j]
	})

	for _, periph := range periphs {
		if !strings.HasPrefix(rest, periph) {
			continue
		}
		tail := rest[len(periph):]
		digits := leadingDigits(tail)
		tail = tail[len(digits):]
		if !strings.HasPrefix(tail, "_") {
			continue
		}
		role := tail[1:]

		var class Class
		var kind types.Kind
		switch {
		case p.PinRoles[role]:
			class, kind = ClassPin, types.KindPinRef
		case p.ParamRoles[role]:
			class, kind = ClassParam, types.KindInteger
		default:
			continue
		}

		index := digits
		if index == "" {
			index = "0"
		}
		return Key{
			Name:       n,
			Class:      class,
			Kind:       kind,
			Peripheral: periph,
			Instance:   strings.ToLower(periph) + index,
			Role:       role,
		}, true
	}
	return Key{}, false
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// Dependencies returns the keys feature requires, sorted. ok is false when
// no dependency set is declared for the feature.
func (p *Policy) Dependencies(feature string) (deps []string, ok bool) {
	d, ok := p.Features[feature]
	if !ok {
		return nil, false
	}
	cp := make([]string, len(d))
	copy(cp, d)
	sort.Strings(cp)
	return cp, true
}

// WithFeatures returns a copy of p whose dependency sets are the union of
// p's and extra's. Keys in extra are normalised.
func (p *Policy) WithFeatures(extra map[string][]string) *Policy {
	out := p.clone()
	for feature, deps := range extra {
		merged := make(map[string]bool)
		for _, d := range out.Features[feature] {
			merged[d] = true
		}
		for _, d := range deps {
			merged[out.Normalize(d)] = true
		}
		list := make([]string, 0, len(merged))
		for d := range merged {
			list = append(list, d)
		}
		sort.Strings(list)
		out.Features[feature] = list
	}
	return out
}

// WithPeripherals returns a copy of p that also recognises the given
// peripheral types.
func (p *Policy) WithPeripherals(periphs ...string) *Policy {
	out := p.clone()
	have := set(out.Peripherals...)
	for _, periph := range periphs {
		up := strings.ToUpper(periph)
		if !have[up] {
			out.Peripherals = append(out.Peripherals, up)
			have[up] = true
		}
	}
	return out
}

func (p *Policy) clone() *Policy {
	out := &Policy{
		Prefixes:    append([]string(nil), p.Prefixes...),
		Identity:    make(map[string]bool, len(p.Identity)),
		Peripherals: append([]string(nil), p.Peripherals...),
		PinRoles:    make(map[string]bool, len(p.PinRoles)),
		ParamRoles:  make(map[string]bool, len(p.ParamRoles)),
		Features:    make(map[string][]string, len(p.Features)),
	}
	for k, v := range p.Identity {
		out.Identity[k] = v
	}
	for k, v := range p.PinRoles {
		out.PinRoles[k] = v
	}
	for k, v := range p.ParamRoles {
		out.ParamRoles[k] = v
	}
	for k, v := range p.Features {
		out.Features[k] = append([]string(nil), v...)
	}
	return out
}
