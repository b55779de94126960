package emit

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

const generatedNotice = "Code generated by boardcfg. DO NOT EDIT."

// renderHeader writes a C header with one #define per symbol.
func renderHeader(cfg *types.ResolvedConfig, prefix string) ([]byte, error) {
	guard := "BOARDCFG_" + macroSafe(cfg.Board()) + "_H"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// %s\n", generatedNotice)
	fmt.Fprintf(&buf, "// board: %s, chip: %s\n\n", cfg.Board(), cfg.Chip())
	fmt.Fprintf(&buf, "#ifndef %s\n#define %s\n\n", guard, guard)
	for _, s := range cfg.Table().Symbols() {
		v, err := cLiteral(s)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "#define %s%s %s\n", prefix, s.Name, v)
	}
	fmt.Fprintf(&buf, "\n#endif // %s\n", guard)
	return buf.Bytes(), nil
}

func cLiteral(s types.Symbol) (string, error) {
	switch v := literal(s).(type) {
	case string:
		return cQuote(v), nil
	case int64:
		return "(" + strconv.FormatInt(v, 10) + ")", nil
	case bool:
		if v {
			return "(1)", nil
		}
		return "(0)", nil
	default:
		return "", fmt.Errorf("%s: cannot emit value %v", s.Name, v)
	}
}

// cQuote renders s as a C string literal. Bytes outside printable ASCII
// become octal escapes.
func cQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\%03o`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// macroSafe upper-cases s and replaces anything but letters and digits
// with underscores.
func macroSafe(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "BOARD"
	}
	return sb.String()
}
