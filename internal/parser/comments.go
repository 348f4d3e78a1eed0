package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// docMarkers open a documentation comment
var docMarkers = []string{"/**", "/*!", "///", "//!"}

// IsDocComment reports whether a comment starts with a documentation marker
func IsDocComment(text string) bool {
	text = strings.TrimSpace(text)
	for _, marker := range docMarkers {
		if strings.HasPrefix(text, marker) {
			return true
		}
	}
	return false
}

// PrecedingComments returns the uninterrupted run of comment siblings
// immediately before n, farthest first. A comment sharing its row with the
// code before it trails that code and ends the run.
func PrecedingComments(n *sitter.Node) []*sitter.Node {
	var comments []*sitter.Node

	for cur := n.PrevSibling(); cur != nil && cur.Type() == nodeComment; cur = cur.PrevSibling() {
		if prev := cur.PrevSibling(); prev != nil && prev.Type() != nodeComment &&
			prev.EndPoint().Row == cur.StartPoint().Row {
			break
		}
		comments = append(comments, cur)
	}

	// Reverse into source order
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments
}

// DocStartRow returns the 0-based row of the earliest documentation comment
// preceding n, or -1 when the preceding comments hold no documentation marker
func DocStartRow(n *sitter.Node, content []byte) int {
	row := -1
	for _, c := range PrecedingComments(n) {
		if !IsDocComment(c.Content(content)) {
			continue
		}
		r := int(c.StartPoint().Row)
		if row == -1 || r < row {
			row = r
		}
	}
	return row
}
