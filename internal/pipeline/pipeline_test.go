package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/emit"
	"github.com/mesh-intelligence/boardcfg/internal/layer"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

const stripAlertsBoard = `#define MICROPY_HW_BOARD_NAME               "StripAlerts MCU"
#define MICROPY_HW_MCU_NAME                 "ESP32"

// Enable UART REPL for modules that have an external USB-UART and don't use native USB.
#define MICROPY_HW_ENABLE_UART_REPL         (1)

#define MICROPY_HW_I2C0_SCL                 (9)
#define MICROPY_HW_I2C0_SDA                 (8)
`

const esp32Port = `# ESP32 port defaults
HW_UART_TX = 1
HW_UART_RX = 3
HW_SPI2_SCK = 18
HW_SPI2_MOSI = 23
HW_SPI2_MISO = 19
`

type recorder struct {
	outcomes []Outcome
}

func (r *recorder) Record(o Outcome) error {
	r.outcomes = append(r.outcomes, o)
	return nil
}

func textSource(name string, tier types.Tier, src string) Source {
	return SourceFunc(func() (*types.Layer, error) {
		return layer.Load(strings.NewReader(src), layer.Options{Name: name, Tier: tier, Source: name + ".h"})
	})
}

func esp32(t *testing.T) *chip.Descriptor {
	t.Helper()
	d, err := chip.Builtin().Lookup("esp32")
	require.NoError(t, err)
	return d
}

func sources(t *testing.T, port, board string) []Source {
	d := esp32(t)
	return []Source{
		ChipLayer(d, nil),
		textSource("port", types.TierPort, port),
		textSource("board", types.TierBoard, board),
	}
}

func newPipeline(t *testing.T, rec Recorder) *Pipeline {
	t.Helper()
	return New(Config{Chip: esp32(t), Recorder: rec})
}

func TestRun_StripAlertsBoard(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(t, rec)

	a, err := p.Run(sources(t, esp32Port, stripAlertsBoard)...)
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, StateEmitted, p.State())
	assert.Equal(t, "StripAlerts MCU", a.Board)
	assert.Equal(t, "esp32", a.Chip)

	out := string(a.Data)
	for _, want := range []string{
		`#define HW_BOARD_NAME "StripAlerts MCU"`,
		`#define HW_MCU_NAME "ESP32"`,
		"#define HW_ENABLE_UART_REPL (1)",
		"#define HW_I2C0_SCL (9)",
		"#define HW_I2C0_SDA (8)",
		"#define HW_UART_TX (1)",
		"#define HW_SPI2_MISO (19)",
	} {
		assert.Contains(t, out, want)
	}

	require.Len(t, rec.outcomes, 1)
	o := rec.outcomes[0]
	assert.Equal(t, p.ID(), o.ID)
	assert.Equal(t, StateEmitted, o.State)
	assert.Equal(t, []string{"chip", "port", "board"}, o.Layers)
	assert.Equal(t, a.Digest, o.Digest)
	assert.Equal(t, "header", o.Format)
	assert.NoError(t, o.Err)
}

func TestRun_FixedPortValue(t *testing.T) {
	port := esp32Port + "fixed HW_I2C0_SDA = 8\n"

	p := newPipeline(t, nil)
	_, err := p.Run(sources(t, port, stripAlertsBoard)...)
	require.NoError(t, err, "restating a fixed value is not an override")

	p = newPipeline(t, nil)
	board := strings.Replace(stripAlertsBoard, "(8)", "(12)", 1)
	a, err := p.Run(sources(t, port, board)...)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, types.OverrideConflict)
	assert.Equal(t, StateFailed, p.State())

	require.Len(t, p.Report().Diagnostics, 1)
	d := p.Report().Diagnostics[0]
	assert.Equal(t, "HW_I2C0_SDA", d.Symbol)
	assert.Equal(t, []string{"port", "board"}, d.Layers)
}

func TestRun_PinConflict(t *testing.T) {
	board := stripAlertsBoard + "#define MICROPY_HW_UART_TX (9)\n"

	p := newPipeline(t, nil)
	a, err := p.Run(sources(t, esp32Port, board)...)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, types.PinConflict)
	assert.Equal(t, StateFailed, p.State())
	assert.Nil(t, p.Config())

	d := p.Report().Diagnostics[0]
	assert.Contains(t, d.Message, "pin 9")
	assert.Contains(t, d.Message, "HW_I2C0_SCL")
	assert.Contains(t, d.Message, "HW_UART_TX")
}

func TestRun_MissingDependency(t *testing.T) {
	p := newPipeline(t, nil)
	_, err := p.Run(sources(t, "HW_SPI2_SCK = 18\n", stripAlertsBoard)...)
	assert.ErrorIs(t, err, types.MissingDependency)
	assert.Equal(t, 2, p.Report().Count(types.MissingDependency))
	assert.Equal(t, "HW_UART_RX", p.Report().Diagnostics[0].Symbol)
	assert.Equal(t, "HW_UART_TX", p.Report().Diagnostics[1].Symbol)
}

func TestRun_OutOfRangePin(t *testing.T) {
	board := strings.Replace(stripAlertsBoard, "(9)", "(45)", 1)

	p := newPipeline(t, nil)
	_, err := p.Run(sources(t, esp32Port, board)...)
	assert.ErrorIs(t, err, types.OutOfRangeValue)
	require.Len(t, p.Report().Diagnostics, 1)
	assert.Equal(t, "HW_I2C0_SCL", p.Report().Diagnostics[0].Symbol)
}

func TestRun_ParseErrorFailsFromEmpty(t *testing.T) {
	rec := &recorder{}
	p := newPipeline(t, rec)

	_, err := p.Run(sources(t, esp32Port, "#ifdef MICROPY_HW_X\n")...)
	assert.ErrorIs(t, err, types.ParseError)
	assert.Equal(t, StateFailed, p.State())
	assert.Nil(t, p.Stack())
	require.Len(t, p.Report().Diagnostics, 1)
	assert.Equal(t, "board.h", p.Report().Diagnostics[0].Source)

	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, StateFailed, rec.outcomes[0].State)
	assert.NoError(t, rec.outcomes[0].Err, "parse failures are diagnostics, not run errors")
}

func TestPipeline_NoPartialEmission(t *testing.T) {
	failing := []struct {
		name  string
		board string
	}{
		{"duplicate", "HW_I2C0_SCL = 9\nHW_I2C0_SCL = 9\n"},
		{"fixed identity", `HW_MCU_NAME = "RP2040"`},
		{"pin conflict", "HW_I2C0_SCL = 9\nHW_UART_TX = 9\n"},
		{"missing dependency", "HW_ENABLE_USBDEV = 1\n"},
		{"out of range", "HW_I2C0_SCL = 40\n"},
		{"type mismatch", `HW_UART_BAUD = "fast"`},
		{"unresolved reference", "HW_I2C0_SCL = HW_I2C1_SCL\n"},
		{"parse error", "HW_I2C0_SCL = = 9\n"},
	}
	for _, tt := range failing {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, nil)
			a, err := p.Run(sources(t, esp32Port, tt.board)...)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Nil(t, p.Artifact())
			assert.Equal(t, StateFailed, p.State())
			assert.True(t, p.Report().Failed())

			_, err = p.Emit()
			assert.ErrorIs(t, err, types.ErrPipelineFailed)
		})
	}
}

func TestPipeline_Transitions(t *testing.T) {
	p := newPipeline(t, nil)
	assert.Equal(t, StateEmpty, p.State())

	assert.ErrorIs(t, p.Resolve(), types.ErrInvalidTransition)
	assert.ErrorIs(t, p.Validate(), types.ErrInvalidTransition)
	_, err := p.Emit()
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Equal(t, StateEmpty, p.State(), "rejected transitions do not change state")

	require.NoError(t, p.Load(sources(t, esp32Port, stripAlertsBoard)...))
	assert.Equal(t, StateLayersLoaded, p.State())
	assert.ErrorIs(t, p.Load(), types.ErrInvalidTransition)
	assert.ErrorIs(t, p.Validate(), types.ErrInvalidTransition)

	require.NoError(t, p.Resolve())
	assert.Equal(t, StateResolved, p.State())
	assert.NotNil(t, p.Table())

	require.NoError(t, p.Validate())
	assert.Equal(t, StateValidated, p.State())
	assert.NotNil(t, p.Config())

	_, err = p.Emit()
	require.NoError(t, err)
	assert.Equal(t, StateEmitted, p.State())

	_, err = p.Emit()
	assert.ErrorIs(t, err, types.ErrInvalidTransition, "stages are never rerun")
}

func TestPipeline_FailedIsTerminal(t *testing.T) {
	p := newPipeline(t, nil)
	require.NoError(t, p.Load(sources(t, esp32Port, "HW_I2C0_SCL = 9\nHW_I2C0_SCL = 10\n")...))
	assert.Equal(t, StateLayersLoaded, p.State(), "duplicates are found by the resolver")

	require.ErrorIs(t, p.Resolve(), types.DuplicateSymbol)
	assert.Equal(t, StateFailed, p.State())
	assert.ErrorIs(t, p.Resolve(), types.ErrPipelineFailed)
	assert.ErrorIs(t, p.Validate(), types.ErrPipelineFailed)
	assert.ErrorIs(t, p.Load(), types.ErrPipelineFailed)
}

func TestPipeline_EmptyStack(t *testing.T) {
	p := newPipeline(t, nil)
	assert.ErrorIs(t, p.Load(), types.ErrEmptyStack)
	assert.Equal(t, StateFailed, p.State())
}

func TestPipeline_RequiresChip(t *testing.T) {
	p := New(Config{})
	err := p.Check(textSource("board", types.TierBoard, stripAlertsBoard))
	assert.ErrorIs(t, err, types.ErrUnknownChip)
	assert.Equal(t, StateFailed, p.State())
}

func TestRun_Deterministic(t *testing.T) {
	e, err := emit.New(emit.Options{Format: emit.FormatCBOR})
	require.NoError(t, err)

	first, err := Run(Config{Chip: esp32(t), Emitter: e}, sources(t, esp32Port, stripAlertsBoard)...)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(Config{Chip: esp32(t), Emitter: e}, sources(t, esp32Port, stripAlertsBoard)...)
		require.NoError(t, err)
		assert.Equal(t, first.Table().Dump(), again.Table().Dump())
		assert.Equal(t, first.Artifact().Data, again.Artifact().Data)
		assert.NotEqual(t, first.ID(), again.ID())
	}
}

func TestRun_Overrides(t *testing.T) {
	srcs := append(sources(t, esp32Port, stripAlertsBoard),
		Assignments("override", "config.yaml", map[string]string{"HW_I2C0_SCL": "10"}, nil))

	p, err := Run(Config{Chip: esp32(t), Board: "STRIPALERTS"}, srcs...)
	require.NoError(t, err)
	scl, _ := p.Table().Get("HW_I2C0_SCL")
	assert.Equal(t, int64(10), scl.Value)
	assert.Equal(t, "override", scl.Layer)
	assert.Equal(t, "STRIPALERTS", p.Artifact().Board)
}

func TestRun_RepeatedDefineIsDuplicate(t *testing.T) {
	srcs := append(sources(t, esp32Port, stripAlertsBoard),
		Defines("cli", []string{"HW_I2C0_SCL=10", "MICROPY_HW_I2C0_SCL=11"}, nil))

	_, err := Run(Config{Chip: esp32(t)}, srcs...)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.DuplicateSymbol)
}

func TestRun_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(Config{Chip: esp32(t), Logger: logger}, sources(t, esp32Port, stripAlertsBoard)...)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "to=LAYERS_LOADED")
	assert.Contains(t, out, "to=EMITTED")
	assert.Contains(t, out, `board="StripAlerts MCU"`)
}

func TestRun_RecorderErrorIsNotFatal(t *testing.T) {
	rec := recorderFunc(func(Outcome) error { return errors.New("disk full") })
	_, err := Run(Config{Chip: esp32(t), Recorder: rec}, sources(t, esp32Port, stripAlertsBoard)...)
	assert.NoError(t, err)
}

type recorderFunc func(Outcome) error

func (f recorderFunc) Record(o Outcome) error { return f(o) }

func TestState_String(t *testing.T) {
	assert.Equal(t, "LAYERS_LOADED", StateLayersLoaded.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateValidated.Terminal())
}
