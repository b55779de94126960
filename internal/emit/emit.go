// Package emit serializes a validated configuration into the artifact
// consumed by driver initialization code. Emission is all-or-nothing: the
// whole artifact is rendered in memory and returned only when every step
// succeeded.
package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/token"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Format is an artifact encoding.
type Format string

// Artifact formats.
const (
	FormatHeader Format = "header"
	FormatGo     Format = "go"
	FormatJSON   Format = "json"
	FormatCBOR   Format = "cbor"
)

// Formats lists every supported format.
var Formats = []Format{FormatHeader, FormatGo, FormatJSON, FormatCBOR}

// ParseFormat returns the format named by s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", types.ErrUnknownFormat, s)
}

// FileName returns the conventional output file name for the format.
func (f Format) FileName() string {
	switch f {
	case FormatHeader:
		return "boardcfg.h"
	case FormatGo:
		return "boardcfg.go"
	case FormatJSON:
		return "boardcfg.json"
	case FormatCBOR:
		return "boardcfg.cbor"
	default:
		return "boardcfg.out"
	}
}

// DefaultGoPackage is the package name of generated Go sources.
const DefaultGoPackage = "boardconfig"

// Options configures an Emitter.
type Options struct {
	Format Format

	// HeaderPrefix is prepended to every key in header output, e.g.
	// "MICROPY_" to reproduce the firmware's macro names.
	HeaderPrefix string

	// GoPackage names the package of Go output. Empty selects
	// DefaultGoPackage.
	GoPackage string
}

// Artifact is one emitted configuration.
type Artifact struct {
	Format Format
	Board  string
	Chip   string
	Data   []byte
	Digest string // hex SHA-256 of Data
}

// Emitter renders ResolvedConfigs in one format.
type Emitter struct {
	opts Options
	enc  cbor.EncMode
}

// New validates opts and returns an Emitter.
func New(opts Options) (*Emitter, error) {
	if opts.Format == "" {
		opts.Format = FormatHeader
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	if opts.GoPackage == "" {
		opts.GoPackage = DefaultGoPackage
	}
	if !token.IsIdentifier(opts.GoPackage) {
		return nil, fmt.Errorf("emit: invalid Go package name %q", opts.GoPackage)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("emit: cbor encoder: %w", err)
	}
	return &Emitter{opts: opts, enc: enc}, nil
}

// Format returns the emitter's format.
func (e *Emitter) Format() Format { return e.opts.Format }

// Emit renders cfg. It refuses a nil configuration with ErrNotSealed; a
// ResolvedConfig can only exist for a table that passed validation.
func (e *Emitter) Emit(cfg *types.ResolvedConfig) (*Artifact, error) {
	if cfg == nil || cfg.Table() == nil {
		return nil, types.ErrNotSealed
	}

	var data []byte
	var err error
	switch e.opts.Format {
	case FormatHeader:
		data, err = renderHeader(cfg, e.opts.HeaderPrefix)
	case FormatGo:
		data, err = renderGo(cfg, e.opts.GoPackage)
	case FormatJSON:
		data, err = renderJSON(cfg)
	case FormatCBOR:
		data, err = e.enc.Marshal(newDocument(cfg))
	default:
		err = fmt.Errorf("%w: %q", types.ErrUnknownFormat, e.opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.opts.Format, err)
	}

	sum := sha256.Sum256(data)
	return &Artifact{
		Format: e.opts.Format,
		Board:  cfg.Board(),
		Chip:   cfg.Chip(),
		Data:   data,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}
