// Package batch splits CQL scripts, such as generated .cql schema files, into
// individual statements.
package batch

import (
	"errors"
	"strings"
)

var (
	// ErrUnclosedString is returned when a quoted literal or name runs to end of input
	ErrUnclosedString = errors.New("unclosed string literal")
	// ErrUnclosedComment is returned when a block comment runs to end of input
	ErrUnclosedComment = errors.New("unclosed block comment")
)

// SplitStatements splits text on semicolons that are not inside string literals,
// quoted names, $$ strings or comments. Comments are dropped, surrounding
// whitespace is trimmed and the terminating semicolons are not included.
// A trailing statement without a semicolon is returned as well.
func SplitStatements(text string) ([]string, error) {
	var (
		stmts   []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end, err := quotedEnd(text, i, c)
			if err != nil {
				return nil, err
			}
			current.WriteString(text[i:end])
			i = end
		case strings.HasPrefix(text[i:], "$$"):
			end := strings.Index(text[i+2:], "$$")
			if end < 0 {
				return nil, ErrUnclosedString
			}
			end += i + 4
			current.WriteString(text[i:end])
			i = end
		case strings.HasPrefix(text[i:], "--") || strings.HasPrefix(text[i:], "//"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				i = len(text)
			} else {
				i += end
			}
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return nil, ErrUnclosedComment
			}
			current.WriteByte(' ')
			i += end + 4
		case c == ';':
			flush()
			i++
		default:
			current.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts, nil
}

// quotedEnd returns the index just past the literal opened by quote at start.
// A doubled quote is an escaped quote.
func quotedEnd(text string, start int, quote byte) (int, error) {
	for i := start + 1; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, ErrUnclosedString
}
