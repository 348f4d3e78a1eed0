// Package splicer writes generated annotations back into a file's lines.
//
// Edits are expressed as 0-based inclusive row ranges of the ORIGINAL
// buffer. Apply processes them from the bottom of the file upwards so that
// growing or shrinking one range never shifts a range that is still pending.
// Rows outside every edit range come out byte-identical.
package splicer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/docsplice/pkg/types"
)

var (
	// ErrOverlap is returned when two edits share a row
	ErrOverlap = errors.New("overlapping edits")

	// ErrOutOfRange is returned when an edit targets rows past the end of the buffer
	ErrOutOfRange = errors.New("edit outside buffer")
)

// inlineSeparator joins function code and a generated inline comment
const inlineSeparator = "\t // "

// commentFolder turns line breaks and tabs inside a generated comment into
// spaces so the comment stays on its line
var commentFolder = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ")

// LineEnding returns "\r\n" when line ends with one and "\n" otherwise
func LineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// SplitLines splits content into newline-terminated lines. The final line
// keeps no newline when content does not end with one.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Join concatenates lines back into file content
func Join(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
	}
	return b.String()
}

// ApplyInline appends each comment to its 1-based, function-relative line.
// Comments are applied from the highest line down; lines outside the
// function are ignored. Line breaks inside a comment are folded to spaces
// and each line keeps its own line ending. The input slice is left untouched.
func ApplyInline(lines []string, comments []types.InlineComment) []string {
	out := make([]string, len(lines))
	copy(out, lines)

	sorted := make([]types.InlineComment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Line > sorted[j].Line
	})

	for _, c := range sorted {
		idx := c.Line - 1
		if idx < 0 || idx >= len(out) {
			continue
		}
		comment := strings.TrimSpace(commentFolder.Replace(c.Comment))
		if comment == "" {
			continue
		}
		out[idx] = strings.TrimRight(out[idx], "\r\n") + inlineSeparator + comment + LineEnding(out[idx])
	}

	return out
}

// BuildBlock renders the replacement text of an edit: the doc block lines
// followed by the function lines with inline comments applied. Doc block
// lines take the line ending of the first function line.
func BuildBlock(edit types.AnnotationEdit) []string {
	block := make([]string, 0, len(edit.Lines)+8)

	eol := "\n"
	if len(edit.Lines) > 0 {
		eol = LineEnding(edit.Lines[0])
	}
	for _, line := range SplitLines(edit.DocBlock) {
		block = append(block, strings.TrimRight(line, "\r\n")+eol)
	}

	return append(block, ApplyInline(edit.Lines, edit.Inline)...)
}

// Apply replaces the row range of every edit with its rendered block.
// All edits are checked before any is applied, so an error leaves no
// partial result.
func Apply(lines []string, edits []types.AnnotationEdit) ([]string, error) {
	ordered, err := order(lines, edits)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(lines))
	copy(out, lines)

	// Bottom-up: earlier rows keep their indices
	for i := len(ordered) - 1; i >= 0; i-- {
		edit := ordered[i]
		block := BuildBlock(edit)

		next := make([]string, 0, len(out)-(edit.EndRow-edit.StartRow+1)+len(block))
		next = append(next, out[:edit.StartRow]...)
		next = append(next, block...)
		next = append(next, out[edit.EndRow+1:]...)
		out = next
	}

	return out, nil
}

// Splice applies edits to file content and returns the new content
func Splice(content string, edits []types.AnnotationEdit) (string, error) {
	lines, err := Apply(SplitLines(content), edits)
	if err != nil {
		return "", err
	}
	return Join(lines), nil
}

// order validates edits against the buffer and returns them sorted by
// ascending StartRow
func order(lines []string, edits []types.AnnotationEdit) ([]types.AnnotationEdit, error) {
	ordered := make([]types.AnnotationEdit, len(edits))
	copy(ordered, edits)

	for i := range ordered {
		if err := ordered[i].Validate(); err != nil {
			return nil, fmt.Errorf("edit %q: %w", ordered[i].Function, err)
		}
		if ordered[i].EndRow >= len(lines) {
			return nil, fmt.Errorf("edit %q rows %d-%d of %d: %w",
				ordered[i].Function, ordered[i].StartRow, ordered[i].EndRow, len(lines), ErrOutOfRange)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartRow < ordered[j].StartRow
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Overlaps(&ordered[i]) {
			return nil, fmt.Errorf("edits %q and %q: %w", ordered[i-1].Function, ordered[i].Function, ErrOverlap)
		}
	}

	return ordered, nil
}

// NumberLines prefixes every line of the trimmed text with its 1-based
// number, as "N: code", right-trimming each line
func NumberLines(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%d: %s", i+1, strings.TrimRightFunc(line, unicode.IsSpace))
	}
	return strings.Join(numbered, "\n")
}
