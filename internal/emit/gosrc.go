package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// renderGo writes a gofmt-formatted constant block for TinyGo driver code.
// Constant names drop the HW_ prefix, so HW_I2C0_SCL becomes I2C0_SCL in
// the style of TinyGo board files.
func renderGo(cfg *types.ResolvedConfig, pkg string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// %s\n\n", generatedNotice)
	fmt.Fprintf(&buf, "// Package %s holds the hardware configuration of board %s (chip %s).\n", pkg, strconv.Quote(cfg.Board()), cfg.Chip())
	fmt.Fprintf(&buf, "package %s\n\n", pkg)

	buf.WriteString("const (\n")
	for _, s := range cfg.Table().Symbols() {
		v, err := goLiteral(s)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "\t%s = %s // %s from %s\n", goName(s.Name), v, s.Kind, s.Layer)
	}
	buf.WriteString(")\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

func goName(name string) string {
	return strings.TrimPrefix(name, "HW_")
}

func goLiteral(s types.Symbol) (string, error) {
	switch v := literal(s).(type) {
	case string:
		return strconv.Quote(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%s: cannot emit value %v", s.Name, v)
	}
}
