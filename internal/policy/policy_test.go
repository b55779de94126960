package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

func TestClassify(t *testing.T) {
	p := Default()

	tests := []struct {
		name     string
		key      string
		wantName string
		class    Class
		kind     types.Kind
		instance string
		role     string
		feature  string
		fixed    bool
	}{
		{"board name", "HW_BOARD_NAME", "HW_BOARD_NAME", ClassIdentity, types.KindString, "", "", "", false},
		{"mcu name is fixed", "HW_MCU_NAME", "HW_MCU_NAME", ClassIdentity, types.KindString, "", "", "", true},
		{"micropython prefix", "MICROPY_HW_MCU_NAME", "HW_MCU_NAME", ClassIdentity, types.KindString, "", "", "", true},
		{"feature flag", "HW_ENABLE_UART_REPL", "HW_ENABLE_UART_REPL", ClassFeature, types.KindBoolean, "", "", "UART_REPL", false},
		{"numbered i2c pin", "HW_I2C0_SCL", "HW_I2C0_SCL", ClassPin, types.KindPinRef, "i2c0", "SCL", "", false},
		{"unnumbered uart pin", "HW_UART_TX", "HW_UART_TX", ClassPin, types.KindPinRef, "uart0", "TX", "", false},
		{"i2s is not i2c", "HW_I2S1_WS", "HW_I2S1_WS", ClassPin, types.KindPinRef, "i2s1", "WS", "", false},
		{"neopixel pin", "HW_NEOPIXEL_PIN", "HW_NEOPIXEL_PIN", ClassPin, types.KindPinRef, "neopixel0", "PIN", "", false},
		{"integer parameter", "HW_I2C1_FREQ", "HW_I2C1_FREQ", ClassParam, types.KindInteger, "i2c1", "FREQ", "", false},
		{"sdmmc data line", "MICROPY_HW_SDMMC_D0", "HW_SDMMC_D0", ClassPin, types.KindPinRef, "sdmmc0", "D0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := p.Classify(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, key.Name)
			assert.Equal(t, tt.class, key.Class)
			assert.Equal(t, tt.kind, key.Kind)
			assert.Equal(t, tt.instance, key.Instance)
			assert.Equal(t, tt.role, key.Role)
			assert.Equal(t, tt.feature, key.Feature)
			assert.Equal(t, tt.fixed, key.Fixed)
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	p := Default()

	tests := []struct {
		key  string
		want error
	}{
		{"hw_board_name", ErrMalformedKey},
		{"HW-BOARD", ErrMalformedKey},
		{"HW_ENABLE_", ErrMalformedKey},
		{"BOARD_NAME", ErrUnknownNamespace},
		{"MICROPY_PY_BLUETOOTH", ErrUnknownNamespace},
		{"HW_I2C0_SPEED", ErrUnknownNamespace},
		{"HW_FOO_TX", ErrUnknownNamespace},
		{"HW_I2C0SCL", ErrUnknownNamespace},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := p.Classify(tt.key)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDependencies(t *testing.T) {
	p := Default()

	deps, ok := p.Dependencies("UART_REPL")
	require.True(t, ok)
	assert.Equal(t, []string{"HW_UART_RX", "HW_UART_TX"}, deps)

	_, ok = p.Dependencies("BLUETOOTH")
	assert.False(t, ok)
}

func TestWithFeatures(t *testing.T) {
	base := Default()
	p := base.WithFeatures(map[string][]string{
		"UART_REPL": {"MICROPY_HW_UART_RTS"},
		"STATUS":    {"HW_LED_PIN"},
	})

	deps, ok := p.Dependencies("UART_REPL")
	require.True(t, ok)
	assert.Equal(t, []string{"HW_UART_RTS", "HW_UART_RX", "HW_UART_TX"}, deps)

	deps, ok = p.Dependencies("STATUS")
	require.True(t, ok)
	assert.Equal(t, []string{"HW_LED_PIN"}, deps)

	// The receiver is left untouched.
	_, ok = base.Dependencies("STATUS")
	assert.False(t, ok)
}

func TestWithPeripherals(t *testing.T) {
	p := Default().WithPeripherals("twai")

	key, err := p.Classify("HW_TWAI0_TX")
	require.NoError(t, err)
	assert.Equal(t, "twai0", key.Instance)

	_, err = Default().Classify("HW_TWAI0_TX")
	assert.ErrorIs(t, err, ErrUnknownNamespace)
}
