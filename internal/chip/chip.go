// Package chip describes what a microcontroller offers to a board: its
// valid GPIO range, the peripheral instances present, chip-level default
// symbols and chip-specific feature dependencies. It must not carry wiring
// choices; those belong to port and board layers.
package chip

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Descriptor is one chip's capabilities.
type Descriptor struct {
	Name    string `yaml:"name"`
	MCUName string `yaml:"mcu_name"`
	PinMin  int    `yaml:"pin_min"`
	PinMax  int    `yaml:"pin_max"`

	// Instances lists the peripheral instances present (e.g. "i2c0", "uart1").
	Instances []string `yaml:"instances"`

	// Features adds to the policy's feature dependency sets.
	Features map[string][]string `yaml:"features,omitempty"`

	// Defaults are chip-level symbol declarations, key to raw value text.
	Defaults map[string]string `yaml:"defaults,omitempty"`

	// Source is the file the descriptor was loaded from, empty for built-ins.
	Source string `yaml:"-"`
}

// Validate checks that the descriptor is usable.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("chip descriptor: name must not be empty")
	}
	if d.PinMin < 0 || d.PinMax < d.PinMin {
		return fmt.Errorf("chip %s: invalid pin range %d-%d", d.Name, d.PinMin, d.PinMax)
	}
	for _, inst := range d.Instances {
		if inst == "" || inst != strings.ToLower(inst) {
			return fmt.Errorf("chip %s: instance %q must be lower case", d.Name, inst)
		}
	}
	return nil
}

// InRange reports whether pin is a valid GPIO index on the chip.
func (d *Descriptor) InRange(pin int64) bool {
	return pin >= int64(d.PinMin) && pin <= int64(d.PinMax)
}

// HasInstance reports whether the peripheral instance exists. An instance
// whose peripheral type does not appear in the catalog at all is accepted,
// since the catalog only constrains the types it lists.
func (d *Descriptor) HasInstance(instance string) bool {
	kind := peripheralType(instance)
	listed := false
	for _, inst := range d.Instances {
		if inst == instance {
			return true
		}
		if peripheralType(inst) == kind {
			listed = true
		}
	}
	return !listed
}

func peripheralType(instance string) string {
	return strings.TrimRight(instance, "0123456789")
}

// Symbols returns the chip layer declarations: the fixed MCU identity
// followed by the descriptor defaults.
func (d *Descriptor) Symbols() map[string]string {
	out := make(map[string]string, len(d.Defaults)+1)
	for k, v := range d.Defaults {
		out[k] = v
	}
	if d.MCUName != "" {
		out["HW_MCU_NAME"] = strconv.Quote(d.MCUName)
	}
	return out
}

// Registry holds the known chip descriptors by lower-case name.
type Registry struct {
	chips map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{chips: make(map[string]*Descriptor)}
}

// Builtin returns a registry seeded with the built-in descriptors.
func Builtin() *Registry {
	r := NewRegistry()
	for _, d := range builtins() {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.chips[strings.ToLower(d.Name)] = d
	return nil
}

// Lookup returns the descriptor named name (case-insensitive).
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.chips[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", types.ErrUnknownChip, name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// Names returns the registered chip names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.chips))
	for n := range r.chips {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a YAML descriptor and registers it.
func (r *Registry) LoadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chip descriptor: %w", err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse chip descriptor %s: %w", path, err)
	}
	d.Source = path
	if err := r.Register(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// InferFromBoard guesses the chip from a board name, e.g. STRIPALERTS_S3
// selects esp32s3. Boards with no recognised marker default to esp32.
func InferFromBoard(board string) string {
	up := strings.ToUpper(board)
	switch {
	case strings.Contains(up, "S3"):
		return "esp32s3"
	case strings.Contains(up, "S2"):
		return "esp32s2"
	case strings.Contains(up, "C3"):
		return "esp32c3"
	case strings.Contains(up, "C6"):
		return "esp32c6"
	case strings.Contains(up, "H2"):
		return "esp32h2"
	case strings.Contains(up, "RP2040"), strings.Contains(up, "PICO"):
		return "rp2040"
	default:
		return "esp32"
	}
}
