package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeStatus(t *testing.T) {
	tests := []struct {
		input string
		want  ChangeStatus
	}{
		{"A", StatusAdded},
		{"M", StatusModified},
		{"D", StatusDeleted},
		{"R100", StatusRenamed},
		{"C075", StatusCopied},
		{" M ", StatusModified},
		{"T", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChangeStatus(tt.input))
		})
	}
}

func TestChangeStatus_HasOldSnapshot(t *testing.T) {
	assert.True(t, StatusModified.HasOldSnapshot())
	assert.True(t, StatusRenamed.HasOldSnapshot())
	assert.True(t, StatusCopied.HasOldSnapshot())
	assert.False(t, StatusAdded.HasOldSnapshot())
	assert.False(t, StatusDeleted.HasOldSnapshot())
}

func TestFunctionSet_Keys(t *testing.T) {
	set := FunctionSet{
		"b()": {Key: "b()", StartLine: 5},
		"a()": {Key: "a()", StartLine: 1},
	}

	assert.Equal(t, []string{"a()", "b()"}, set.Keys())

	key, ok := set.KeyAtLine(5)
	require.True(t, ok)
	assert.Equal(t, "b()", key)

	_, ok = set.KeyAtLine(2)
	assert.False(t, ok)
}

func TestFunctionSpan_ReplaceStartRow(t *testing.T) {
	t.Run("no doc block", func(t *testing.T) {
		span := FunctionSpan{StartRow: 10, EndRow: 12, DocStartRow: -1}
		assert.False(t, span.HasDocBlock())
		assert.Equal(t, 10, span.ReplaceStartRow())
		assert.Equal(t, 11, span.StartLine())
		assert.Equal(t, 13, span.EndLine())
	})

	t.Run("doc block above", func(t *testing.T) {
		span := FunctionSpan{StartRow: 10, EndRow: 12, DocStartRow: 7}
		assert.True(t, span.HasDocBlock())
		assert.Equal(t, 7, span.ReplaceStartRow())
	})
}

func TestAnnotationEdit_Validate(t *testing.T) {
	tests := []struct {
		name string
		edit AnnotationEdit
		want error
	}{
		{"valid", AnnotationEdit{StartRow: 0, EndRow: 2, Lines: []string{"x\n"}}, nil},
		{"negative start", AnnotationEdit{StartRow: -1, EndRow: 2, Lines: []string{"x\n"}}, ErrInvalidRange},
		{"end before start", AnnotationEdit{StartRow: 3, EndRow: 2, Lines: []string{"x\n"}}, ErrInvalidRange},
		{"no lines", AnnotationEdit{StartRow: 0, EndRow: 0}, ErrEmptyFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edit.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnnotationEdit_Overlaps(t *testing.T) {
	a := &AnnotationEdit{StartRow: 10, EndRow: 20}
	assert.True(t, a.Overlaps(&AnnotationEdit{StartRow: 20, EndRow: 25}))
	assert.True(t, a.Overlaps(&AnnotationEdit{StartRow: 12, EndRow: 14}))
	assert.False(t, a.Overlaps(&AnnotationEdit{StartRow: 21, EndRow: 30}))
	assert.False(t, a.Overlaps(&AnnotationEdit{StartRow: 0, EndRow: 9}))
}

func TestCursor(t *testing.T) {
	c := NewCursor(time.Date(2025, 8, 26, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "2025-08-26", c.LastDate)
	assert.False(t, c.IsZero())

	d, err := c.Date()
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.August, d.Month())

	_, err = Cursor{LastDate: "26/08/2025"}.Date()
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.True(t, Cursor{}.IsZero())
}

func TestParseResult_FunctionAt(t *testing.T) {
	pr := &ParseResult{
		Functions: []FunctionSpan{{Key: "f()", StartRow: 3}},
	}
	pr.AddError("a.cpp", 1, 2, "unexpected token")

	assert.True(t, pr.HasErrors())
	assert.Equal(t, "unexpected token", pr.Errors[0].Error())

	fn, ok := pr.FunctionAt(4)
	require.True(t, ok)
	assert.Equal(t, "f()", fn.Key)

	_, ok = pr.FunctionAt(3)
	assert.False(t, ok)
}
