package layer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/boardcfg/internal/policy"
)

var (
	barewordPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
	intSuffix       = regexp.MustCompile(`^(-?(?:0[xX][0-9A-Fa-f]+|0[bB][01]+|[0-9]+))[uUlL]*$`)
)

// ParseValue interprets the raw value text of a declaration. It returns a
// string, int64 or bool value, or the normalised name of a referenced key.
//
//	"StripAlerts MCU"  -> string
//	(9), 0x1F, 400000UL -> int64
//	true, false        -> bool
//	HW_DEFAULT_TX      -> reference (when the word is a recognised key)
//	GPIO9              -> string
func ParseValue(raw string, pol *policy.Policy) (value any, ref string, err error) {
	s, err := stripParens(strings.TrimSpace(raw))
	if err != nil {
		return nil, "", err
	}
	if s == "" {
		return nil, "", errors.New("missing value")
	}

	if strings.HasPrefix(s, `"`) {
		str, err := strconv.Unquote(s)
		if err != nil {
			return nil, "", fmt.Errorf("malformed string literal %s", s)
		}
		return str, "", nil
	}

	switch strings.ToLower(s) {
	case "true":
		return true, "", nil
	case "false":
		return false, "", nil
	}

	if m := intSuffix.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 0, 64)
		if err != nil {
			return nil, "", fmt.Errorf("integer literal %s: %w", s, err)
		}
		return n, "", nil
	}

	if barewordPattern.MatchString(s) {
		if pol != nil {
			if key, err := pol.Classify(s); err == nil {
				return nil, key.Name, nil
			}
		}
		return s, "", nil
	}

	return nil, "", fmt.Errorf("unsupported value expression %q", raw)
}

// stripParens removes balanced outer parentheses, as in "(1)" or "((9))".
func stripParens(s string) (string, error) {
	for strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return "", fmt.Errorf("unbalanced parentheses in %q", s)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s, nil
}

// ParseAssignment splits a KEY=VALUE command-line assignment.
func ParseAssignment(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected KEY=VALUE, got %q", s)
	}
	return key, strings.TrimSpace(value), nil
}
