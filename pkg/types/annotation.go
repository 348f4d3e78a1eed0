package types

import (
	"time"
)

// CursorDateLayout is the on-disk format of Cursor.LastDate
const CursorDateLayout = "2006-01-02"

// InlineComment is one generated comment anchored to a 1-based,
// function-relative line
type InlineComment struct {
	Line    int    `json:"line"`
	Comment string `json:"comment"`
}

// AnnotationEdit replaces rows [StartRow, EndRow] (0-based, inclusive) of a
// file with DocBlock followed by Lines, Inline comments applied to Lines
type AnnotationEdit struct {
	// Target
	StartRow int
	EndRow   int

	// Replacement
	DocBlock string   // Optional; may span several lines
	Lines    []string // Cleaned function lines, newline-terminated
	Inline   []InlineComment

	// Reporting
	Function string
}

// Validate checks that the edit describes a usable row range
func (e *AnnotationEdit) Validate() error {
	if e.StartRow < 0 || e.EndRow < e.StartRow {
		return ErrInvalidRange
	}

	if len(e.Lines) == 0 {
		return ErrEmptyFunction
	}

	return nil
}

// Overlaps reports whether two edits share at least one row
func (e *AnnotationEdit) Overlaps(other *AnnotationEdit) bool {
	return e.StartRow <= other.EndRow && other.StartRow <= e.EndRow
}

// ReviewRecord is one entry of the persisted review log.
// Identity is the (File, Function) pair.
type ReviewRecord struct {
	File     string    `json:"file"`
	Function string    `json:"function"`
	Glitches []string  `json:"glitches"`
	DateTime time.Time `json:"date_time"`
}

// ReviewKey identifies a reviewed function
type ReviewKey struct {
	File     string
	Function string
}

// Key returns the identity of the record
func (r ReviewRecord) Key() ReviewKey {
	return ReviewKey{File: r.File, Function: r.Function}
}

// Cursor records the last processed revision boundary
type Cursor struct {
	LastDate string `json:"last_date"`
}

// NewCursor returns a cursor for the calendar date of t
func NewCursor(t time.Time) Cursor {
	return Cursor{LastDate: t.Format(CursorDateLayout)}
}

// Date parses LastDate
func (c Cursor) Date() (time.Time, error) {
	t, err := time.Parse(CursorDateLayout, c.LastDate)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// IsZero reports whether no date has been recorded
func (c Cursor) IsZero() bool {
	return c.LastDate == ""
}
