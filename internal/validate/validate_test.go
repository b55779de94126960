package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/layer"
	"github.com/mesh-intelligence/boardcfg/internal/resolve"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

const stripAlertsBoard = `#define MICROPY_HW_BOARD_NAME "StripAlerts MCU"
#define MICROPY_HW_MCU_NAME "ESP32"
#define MICROPY_HW_ENABLE_UART_REPL (1)
#define MICROPY_HW_I2C0_SCL (9)
#define MICROPY_HW_I2C0_SDA (8)
`

const esp32Port = `HW_UART_TX = 1
HW_UART_RX = 3
HW_SPI2_SCK = 18
HW_SPI2_MOSI = 23
`

func esp32(t *testing.T) *chip.Descriptor {
	t.Helper()
	d, err := chip.Builtin().Lookup("esp32")
	require.NoError(t, err)
	return d
}

// table resolves the given layer sources, lowest precedence first.
func table(t *testing.T, sources ...string) *types.SymbolTable {
	t.Helper()
	names := []string{"chip", "port", "board", "override"}
	tiers := []types.Tier{types.TierChip, types.TierPort, types.TierBoard, types.TierOverride}
	offset := len(names) - len(sources)
	require.GreaterOrEqual(t, offset, 0)

	var layers []*types.Layer
	for i, src := range sources {
		l, err := layer.Load(strings.NewReader(src), layer.Options{
			Name:   names[offset+i],
			Tier:   tiers[offset+i],
			Format: layer.FormatText,
		})
		require.NoError(t, err)
		layers = append(layers, l)
	}
	stack, err := layer.Stack(layers...)
	require.NoError(t, err)
	tbl, err := resolve.Resolve(stack)
	require.NoError(t, err)
	return tbl
}

func kinds(r *types.Report) []string {
	var out []string
	for _, d := range r.Diagnostics {
		out = append(out, string(d.Kind)+":"+d.Symbol)
	}
	return out
}

func TestValidate_StripAlertsPasses(t *testing.T) {
	tbl := table(t, `HW_MCU_NAME = "ESP32"`, esp32Port, stripAlertsBoard)

	report := New(esp32(t), nil).Validate(tbl)
	assert.False(t, report.Failed(), "unexpected diagnostics: %v", report.Diagnostics)
	assert.Empty(t, report.Warnings)
	assert.NoError(t, report.Err())
}

func TestValidate_PinConflict(t *testing.T) {
	tbl := table(t, "HW_I2C0_SCL = 9\nHW_UART_TX = 9\n")

	report := New(esp32(t), nil).Validate(tbl)
	require.Len(t, report.Diagnostics, 1)

	d := report.Diagnostics[0]
	assert.Equal(t, types.PinConflict, d.Kind)
	assert.Equal(t, "HW_I2C0_SCL", d.Symbol)
	assert.Equal(t, []string{"override"}, d.Layers)
	assert.Contains(t, d.Message, "pin 9")
	assert.Contains(t, d.Message, "HW_I2C0_SCL, HW_UART_TX")
	assert.ErrorIs(t, report.Err(), types.PinConflict)
}

func TestValidate_PinConflictAcrossLayers(t *testing.T) {
	tbl := table(t, `HW_MCU_NAME = "ESP32"`, esp32Port, "HW_I2C0_SCL = 1\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.Equal(t, []string{"PinConflict:HW_I2C0_SCL"}, kinds(report))
	assert.Equal(t, []string{"board", "port"}, report.Diagnostics[0].Layers)
}

func TestValidate_SharedPins(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		conflict bool
	}{
		{"all shared", "shared HW_I2C0_SDA = 8\nshared HW_I2C1_SDA = 8\n", false},
		{"tag shared", "HW_I2C0_SDA = 8 // @shared\nHW_I2C1_SDA = 8 // @shared\n", false},
		{"one exclusive", "shared HW_I2C0_SDA = 8\nHW_I2C1_SDA = 8\n", true},
		{"three claims", "HW_I2C0_SDA = 8\nHW_I2C1_SDA = 8\nHW_UART_TX = 8\n", true},
		{"single shared binding", "shared HW_I2C0_SDA = 8\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := New(esp32(t), nil).Validate(table(t, tt.src))
			assert.Equal(t, tt.conflict, report.Count(types.PinConflict) == 1)
			assert.LessOrEqual(t, report.Count(types.PinConflict), 1, "one diagnostic per pin")
		})
	}
}

func TestValidate_PinConflictListsEveryRole(t *testing.T) {
	tbl := table(t, "HW_UART_TX = 8\nshared HW_I2C1_SDA = 8\nHW_I2C0_SDA = 8\n")

	report := New(esp32(t), nil).Validate(tbl)
	require.Len(t, report.Diagnostics, 1)
	assert.Contains(t, report.Diagnostics[0].Message, "pin 8 is claimed by HW_I2C0_SDA, HW_I2C1_SDA, HW_UART_TX")
	assert.Contains(t, report.Diagnostics[0].Message, "not shareable: HW_I2C0_SDA, HW_UART_TX")
}

func TestValidate_MissingDependency(t *testing.T) {
	tbl := table(t, stripAlertsBoard)

	report := New(esp32(t), nil).Validate(tbl)
	assert.Equal(t, []string{
		"MissingDependency:HW_UART_RX",
		"MissingDependency:HW_UART_TX",
	}, kinds(report))
	for _, d := range report.Diagnostics {
		assert.Contains(t, d.Message, "HW_ENABLE_UART_REPL")
		assert.Equal(t, []string{"override"}, d.Layers)
	}
}

func TestValidate_DisabledFeatureHasNoDependencies(t *testing.T) {
	tbl := table(t, "HW_ENABLE_UART_REPL = 0\nHW_ENABLE_USBDEV = false\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.False(t, report.Failed())
}

func TestValidate_DependencyOutOfRangeReportedOnce(t *testing.T) {
	tbl := table(t, "HW_ENABLE_UART_REPL = 1\nHW_UART_TX = 45\nHW_UART_RX = 3\n")

	report := New(esp32(t), nil).Validate(tbl)
	require.Equal(t, []string{"OutOfRangeValue:HW_UART_TX"}, kinds(report))
	assert.Contains(t, report.Diagnostics[0].Message, "required by HW_ENABLE_UART_REPL")
}

func TestValidate_DependencyWrongKind(t *testing.T) {
	tbl := table(t, "HW_ENABLE_NEOPIXEL = 1\nHW_NEOPIXEL_PIN = \"GPIO48\"\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.Equal(t, []string{"TypeMismatch:HW_NEOPIXEL_PIN"}, kinds(report))
}

func TestValidate_FeatureWithoutDependencySetWarns(t *testing.T) {
	tbl := table(t, "HW_ENABLE_BLE = 1\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.False(t, report.Failed())
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "HW_ENABLE_BLE", report.Warnings[0].Symbol)
}

func TestValidate_ChipFeatureDependencies(t *testing.T) {
	d := &chip.Descriptor{
		Name: "custom", MCUName: "CUSTOM", PinMin: 0, PinMax: 30,
		Features: map[string][]string{"LCD": {"MICROPY_HW_SPI2_SCK", "HW_SPI2_MOSI"}},
	}
	tbl := table(t, "HW_ENABLE_LCD = 1\nHW_SPI2_MOSI = 23\n")

	report := New(d, nil).Validate(tbl)
	assert.Equal(t, []string{"MissingDependency:HW_SPI2_SCK"}, kinds(report))
	assert.Empty(t, report.Warnings)
}

func TestValidate_SharedMissingDependencyNamesEveryFeature(t *testing.T) {
	d := &chip.Descriptor{
		Name: "custom", MCUName: "CUSTOM", PinMin: 0, PinMax: 30,
		Features: map[string][]string{"DEBUG_CONSOLE": {"HW_UART_TX"}},
	}
	tbl := table(t, "HW_ENABLE_UART_REPL = 1\nHW_UART_RX = 3\n", "HW_ENABLE_DEBUG_CONSOLE = 1\n")

	report := New(d, nil).Validate(tbl)
	require.Equal(t, []string{"MissingDependency:HW_UART_TX"}, kinds(report))
	got := report.Diagnostics[0]
	assert.Contains(t, got.Message, "HW_ENABLE_DEBUG_CONSOLE is enabled but requires HW_UART_TX")
	assert.Contains(t, got.Message, "also required by HW_ENABLE_UART_REPL")
	assert.Equal(t, []string{"override", "board"}, got.Layers)
}

func TestValidate_OutOfRangePin(t *testing.T) {
	tbl := table(t, "HW_I2C0_SCL = 45\nHW_I2C0_SDA = 8\n")

	report := New(esp32(t), nil).Validate(tbl)
	require.Equal(t, []string{"OutOfRangeValue:HW_I2C0_SCL"}, kinds(report))
	assert.Contains(t, report.Diagnostics[0].Message, "pin 45 is outside the esp32 range 0-39")

	s3, err := chip.Builtin().Lookup("esp32s3")
	require.NoError(t, err)
	assert.False(t, New(s3, nil).Validate(tbl).Failed(), "45 is a valid ESP32-S3 pin")
}

func TestValidate_NegativePin(t *testing.T) {
	report := New(esp32(t), nil).Validate(table(t, "HW_I2C0_SCL = -1\n"))
	assert.Equal(t, []string{"OutOfRangeValue:HW_I2C0_SCL"}, kinds(report))
}

func TestValidate_InstanceCatalog(t *testing.T) {
	tbl := table(t, "HW_UART5_TX = 4\nHW_NEOPIXEL_PIN = 5\n")

	report := New(esp32(t), nil).Validate(tbl)
	require.Equal(t, []string{"OutOfRangeValue:HW_UART5_TX"}, kinds(report))
	assert.Contains(t, report.Diagnostics[0].Message, "uart5")
}

func TestValidate_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"pin as string", `HW_I2C0_SCL = "GPIO9"`, "TypeMismatch:HW_I2C0_SCL"},
		{"bare word pin", "HW_I2C0_SCL = GPIO9", "TypeMismatch:HW_I2C0_SCL"},
		{"integer as bool", "HW_UART_BAUD = true", "TypeMismatch:HW_UART_BAUD"},
		{"feature as string", `HW_ENABLE_USBDEV = "yes"`, "TypeMismatch:HW_ENABLE_USBDEV"},
		{"feature as 2", "HW_ENABLE_USBDEV = 2", "TypeMismatch:HW_ENABLE_USBDEV"},
		{"name as int", "HW_BOARD_NAME = 7", "TypeMismatch:HW_BOARD_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := New(esp32(t), nil).Validate(table(t, tt.src+"\n"))
			assert.Equal(t, []string{tt.want}, kinds(report))
		})
	}
}

func TestValidate_UnresolvedReferences(t *testing.T) {
	tbl := table(t, "HW_UART_TX = HW_UART1_TX\nHW_SPI2_SCK = HW_SPI2_MOSI\nHW_SPI2_MOSI = HW_SPI2_SCK\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.Equal(t, []string{
		"MissingDependency:HW_SPI2_MOSI",
		"MissingDependency:HW_SPI2_SCK",
		"MissingDependency:HW_UART_TX",
	}, kinds(report))
	assert.Contains(t, report.Diagnostics[0].Message, "reference cycle")
	assert.Contains(t, report.Diagnostics[2].Message, "HW_UART1_TX, which no layer defines")
}

func TestValidate_AccumulatesInCheckOrder(t *testing.T) {
	tbl := table(t, stripAlertsBoard+"#define MICROPY_HW_UART_TX (9)\n#define MICROPY_HW_SPI2_SCK (45)\n")

	report := New(esp32(t), nil).Validate(tbl)
	assert.Equal(t, []string{
		"PinConflict:HW_I2C0_SCL",
		"MissingDependency:HW_UART_RX",
		"OutOfRangeValue:HW_SPI2_SCK",
	}, kinds(report))
}

func TestValidate_NilChipSkipsRange(t *testing.T) {
	report := New(nil, nil).Validate(table(t, "HW_I2C0_SCL = 450\n"))
	assert.False(t, report.Failed())
}
