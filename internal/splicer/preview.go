package splicer

import (
	"bytes"
	"fmt"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/dshills/docsplice/pkg/types"
)

// Preview renders the edits as a unified diff against original without
// applying them. Hunks are ascending; new-side line numbers include the
// growth of every earlier hunk.
func Preview(path string, original []string, edits []types.AnnotationEdit) ([]byte, error) {
	ordered, err := order(original, edits)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
	}

	offset := 0
	for _, edit := range ordered {
		block := BuildBlock(edit)
		removed := original[edit.StartRow : edit.EndRow+1]

		var body bytes.Buffer
		for _, line := range removed {
			writeDiffLine(&body, '-', line)
		}
		for _, line := range block {
			writeDiffLine(&body, '+', line)
		}

		fd.Hunks = append(fd.Hunks, &diff.Hunk{
			OrigStartLine: int32(edit.StartRow + 1),
			OrigLines:     int32(len(removed)),
			NewStartLine:  int32(edit.StartRow + 1 + offset),
			NewLines:      int32(len(block)),
			Section:       edit.Function,
			Body:          body.Bytes(),
		})

		offset += len(block) - len(removed)
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return nil, fmt.Errorf("print diff for %s: %w", path, err)
	}
	return out, nil
}

func writeDiffLine(buf *bytes.Buffer, prefix byte, line string) {
	buf.WriteByte(prefix)
	buf.WriteString(line)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		buf.WriteByte('\n')
	}
}
