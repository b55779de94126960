package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *SymbolTable {
	syms := []Symbol{
		{Name: "HW_UART_TX", Kind: KindPinRef, Value: int64(1), Instance: "uart0", Layer: "port"},
		{Name: "HW_BOARD_NAME", Kind: KindString, Value: "StripAlerts MCU", Layer: "board"},
		{Name: "HW_ENABLE_UART_REPL", Kind: KindBoolean, Value: int64(1), Layer: "board"},
		{Name: "HW_I2C0_SDA", Kind: KindPinRef, Value: int64(8), Instance: "i2c0", Layer: "port", Fixed: true, Shared: true},
	}
	history := map[string][]Symbol{
		"HW_BOARD_NAME": {
			{Name: "HW_BOARD_NAME", Kind: KindString, Value: "Generic ESP32", Layer: "port"},
			syms[1],
		},
	}
	return NewSymbolTable(syms, history)
}

func TestSymbolTable(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"HW_BOARD_NAME", "HW_ENABLE_UART_REPL", "HW_I2C0_SDA", "HW_UART_TX"}, tbl.Names())
	assert.True(t, tbl.Has("HW_UART_TX"))
	assert.False(t, tbl.Has("HW_UART_RX"))

	s, ok := tbl.Get("HW_BOARD_NAME")
	require.True(t, ok)
	assert.Equal(t, "board", s.Layer)

	prov := tbl.Provenance("HW_BOARD_NAME")
	require.Len(t, prov, 2)
	assert.Equal(t, "port", prov[0].Layer)
	assert.Empty(t, tbl.Provenance("HW_UART_TX"))

	pins := tbl.PinBindings()
	require.Len(t, pins, 2)
	assert.Equal(t, "HW_I2C0_SDA", pins[0].Role)
	assert.Equal(t, 1, pins[1].Pin)

	flags := tbl.FeatureFlags()
	require.Len(t, flags, 1)
	assert.True(t, flags[0].Enabled)
}

func TestSymbolTableDump(t *testing.T) {
	want := `HW_BOARD_NAME STRING "StripAlerts MCU" board
HW_ENABLE_UART_REPL BOOLEAN true board
HW_I2C0_SDA PIN_REF 8 port fixed shared
HW_UART_TX PIN_REF 1 port
`
	assert.Equal(t, want, string(sampleTable().Dump()))
	assert.Equal(t, sampleTable().Dump(), sampleTable().Dump())
}

func TestSymbolTablePanicsOnDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		NewSymbolTable([]Symbol{{Name: "HW_UART_TX"}, {Name: "HW_UART_TX"}}, nil)
	})
}

func TestNewResolvedConfig(t *testing.T) {
	tbl := sampleTable()

	_, err := NewResolvedConfig(nil, &Report{}, "b", "c")
	assert.ErrorIs(t, err, ErrNotSealed)

	failed := &Report{}
	failed.Add(Diagnostic{Kind: PinConflict, Message: "pin 9"})
	_, err = NewResolvedConfig(tbl, failed, "b", "c")
	assert.ErrorIs(t, err, ErrNotSealed)

	ok := &Report{}
	ok.Warn(Diagnostic{Kind: MissingDependency, Message: "no dependency set"})
	cfg, err := NewResolvedConfig(tbl, ok, "STRIPALERTS", "esp32")
	require.NoError(t, err)
	assert.Equal(t, "STRIPALERTS", cfg.Board())
	assert.Equal(t, "esp32", cfg.Chip())
	assert.Same(t, tbl, cfg.Table())
	assert.Len(t, cfg.Report().Warnings, 1)
}
