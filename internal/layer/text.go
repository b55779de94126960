package layer

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Preprocessor directives that cannot be evaluated statically.
var unsupportedDirectives = map[string]bool{
	"if": true, "ifdef": true, "ifndef": true, "elif": true, "else": true,
	"endif": true, "include": true, "undef": true, "error": true, "warning": true,
}

// parseText reads #define KEY VALUE and [fixed] [shared] KEY = VALUE lines.
// Comments are //, /* */ (possibly spanning lines) and #-comments that are
// not preprocessor directives. @fixed and @shared tags in a trailing comment
// mark the definition on that line.
func parseText(data []byte, opts Options) ([]types.Symbol, error) {
	pol := opts.policy()
	var defs []types.Symbol

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	inBlock := false
	for scanner.Scan() {
		lineNum++
		code, comment, open := splitComment(scanner.Text(), inBlock, false)
		inBlock = open
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}

		var key, raw string
		var mods modifiers
		var err error
		if strings.HasPrefix(code, "#") {
			var skip bool
			key, raw, skip, err = parseDirective(code)
			if err != nil {
				return nil, parseError(opts, lineNum, "", err)
			}
			if skip {
				continue
			}
		} else {
			var hashComment string
			code, hashComment, _ = splitComment(code, false, true)
			comment += " " + hashComment
			key, raw, mods, err = parseAssignmentLine(code)
			if err != nil {
				return nil, parseError(opts, lineNum, "", err)
			}
		}

		tagged := commentTags(comment)
		mods.fixed = mods.fixed || tagged.fixed
		mods.shared = mods.shared || tagged.shared

		sym, err := buildSymbol(pol, key, raw, lineNum, mods)
		if err != nil {
			return nil, parseError(opts, lineNum, pol.Normalize(key), err)
		}
		defs = append(defs, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read layer %s: %w", opts.Name, err)
	}
	if inBlock {
		return nil, parseError(opts, lineNum, "", fmt.Errorf("unterminated block comment"))
	}
	return defs, nil
}

// parseDirective handles a line starting with '#'. skip is true for lines
// that carry no definition (#-comments, #pragma).
func parseDirective(code string) (key, raw string, skip bool, err error) {
	body := strings.TrimPrefix(code, "#")
	word := body
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		word = body[:i]
	}

	switch {
	case word == "define":
	case word == "pragma":
		return "", "", true, nil
	case unsupportedDirectives[word]:
		return "", "", false, fmt.Errorf("unsupported preprocessor directive #%s", word)
	default:
		// A plain #-comment.
		return "", "", true, nil
	}

	rest := strings.TrimLeft(body[len(word):], " \t")
	if rest == "" {
		return "", "", false, fmt.Errorf("#define without a name")
	}
	end := strings.IndexAny(rest, " \t(")
	if end < 0 {
		return "", "", false, fmt.Errorf("#define %s has no value", rest)
	}
	if rest[end] == '(' {
		return "", "", false, fmt.Errorf("function-like macro %s is not supported", rest[:end])
	}
	key = rest[:end]
	raw = strings.TrimSpace(rest[end:])
	if raw == "" {
		return "", "", false, fmt.Errorf("#define %s has no value", key)
	}
	return key, raw, false, nil
}

// parseAssignmentLine handles [fixed] [shared] KEY = VALUE.
func parseAssignmentLine(code string) (key, raw string, mods modifiers, err error) {
	left, right, ok := strings.Cut(code, "=")
	if !ok {
		return "", "", mods, fmt.Errorf("expected KEY = VALUE or #define KEY VALUE, got %q", code)
	}
	words := strings.Fields(left)
	if len(words) == 0 {
		return "", "", mods, fmt.Errorf("missing key before '='")
	}
	key = words[len(words)-1]
	for _, w := range words[:len(words)-1] {
		switch w {
		case "fixed":
			mods.fixed = true
		case "shared":
			mods.shared = true
		default:
			return "", "", mods, fmt.Errorf("unknown modifier %q", w)
		}
	}
	raw = strings.TrimSpace(right)
	if raw == "" {
		return "", "", mods, fmt.Errorf("%s has no value", key)
	}
	return key, raw, mods, nil
}

// splitComment separates code from comment text on one line, ignoring
// comment markers inside double-quoted strings. inBlock reports whether the
// line starts inside a /* */ comment; open reports whether it ends inside
// one. With hash set, '#' also starts a line comment.
func splitComment(line string, inBlock, hash bool) (code, comment string, open bool) {
	var codeB, commentB strings.Builder
	inQuote := false
	for i := 0; i < len(line); {
		if inBlock {
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				commentB.WriteString(line[i:])
				return codeB.String(), commentB.String(), true
			}
			commentB.WriteString(line[i : i+end])
			commentB.WriteByte(' ')
			i += end + 2
			inBlock = false
			continue
		}

		c := line[i]
		if inQuote {
			codeB.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				codeB.WriteByte(line[i+1])
				i += 2
				continue
			}
			if c == '"' {
				inQuote = false
			}
			i++
			continue
		}

		switch {
		case c == '"':
			inQuote = true
		case strings.HasPrefix(line[i:], "//"):
			commentB.WriteString(line[i+2:])
			return codeB.String(), commentB.String(), false
		case strings.HasPrefix(line[i:], "/*"):
			inBlock = true
			i += 2
			continue
		case hash && c == '#':
			commentB.WriteString(line[i+1:])
			return codeB.String(), commentB.String(), false
		}
		codeB.WriteByte(c)
		i++
	}
	return codeB.String(), commentB.String(), inBlock
}

// commentTags extracts @fixed and @shared markers from comment text.
func commentTags(comment string) modifiers {
	var mods modifiers
	for _, w := range strings.FieldsFunc(comment, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	}) {
		switch w {
		case "@fixed":
			mods.fixed = true
		case "@shared":
			mods.shared = true
		}
	}
	return mods
}
