// Package stripper removes trailing comments from C/C++ function text while
// keeping its line structure intact.
//
// Full-line // comments are kept because they usually hold disabled code or
// section markers. Block comments are always kept. Inline // comments that
// follow code on the same line are dropped. Comment markers inside string
// and character literals are ignored. After the pass every line is
// right-trimmed; the output has exactly as many lines as the input.
package stripper

import "strings"

type state int

const (
	stateNormal state = iota
	stateString
	stateLineCommentFull
	stateLineCommentInline
	stateBlockComment
)

// Strip runs the comment state machine over text in a single pass
func Strip(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	var (
		st    = stateNormal
		quote byte
		// lineBlank holds while the current physical line has only whitespace so far
		lineBlank = true
	)

	consume := func(c byte) {
		switch {
		case c == '\n':
			lineBlank = true
		case !isSpace(c):
			lineBlank = false
		}
	}

	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]

		switch st {
		case stateString:
			out.WriteByte(c)
			consume(c)
			if c == '\\' {
				// Escape: copy the next byte verbatim and stay in the string
				if i+1 < n {
					i++
					out.WriteByte(text[i])
					consume(text[i])
				}
				continue
			}
			if c == quote {
				st = stateNormal
			}

		case stateLineCommentFull:
			out.WriteByte(c)
			consume(c)
			if c == '\n' {
				st = stateNormal
			}

		case stateLineCommentInline:
			consume(c)
			if c == '\n' {
				out.WriteByte(c)
				st = stateNormal
			}

		case stateBlockComment:
			if c == '*' && i+1 < n && text[i+1] == '/' {
				out.WriteString("*/")
				consume(c)
				consume('/')
				i++
				st = stateNormal
				continue
			}
			out.WriteByte(c)
			consume(c)

		default:
			switch {
			case c == '"' || c == '\'':
				quote = c
				st = stateString
				out.WriteByte(c)

			case c == '/' && i+1 < n && text[i+1] == '/':
				if lineBlank {
					st = stateLineCommentFull
					out.WriteString("//")
				} else {
					st = stateLineCommentInline
				}
				consume('/')
				i++

			case c == '/' && i+1 < n && text[i+1] == '*':
				st = stateBlockComment
				out.WriteString("/*")
				consume('/')
				i++

			default:
				out.WriteByte(c)
			}
			consume(c)
		}
	}

	return trimLines(out.String())
}

// trimLines right-trims whitespace on every line without removing any line
func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r\v\f")
	}
	return strings.Join(lines, "\n")
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\v', '\f', '\n':
		return true
	}
	return false
}

// LineCount returns the number of lines in s, counting a final unterminated line
func LineCount(s string) int {
	return strings.Count(s, "\n") + 1
}
