package types

import "sort"

// FunctionRecord is the identity and fingerprint of one function definition
type FunctionRecord struct {
	Key         string // Raw declarator text, trimmed
	ContentHash string // Digest of the definition text (template header included)
	StartLine   int    // 1-based line of the definition node
}

// SameContent reports whether two records describe an unchanged function
func (r FunctionRecord) SameContent(other FunctionRecord) bool {
	return r.Key == other.Key && r.ContentHash == other.ContentHash
}

// FunctionSet maps a declarator key to its record for one file snapshot
type FunctionSet map[string]FunctionRecord

// Keys returns the keys of the set in sorted order
func (s FunctionSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeyAtLine returns the key whose record starts at the given 1-based line
func (s FunctionSet) KeyAtLine(line int) (string, bool) {
	for k, rec := range s {
		if rec.StartLine == line {
			return k, true
		}
	}
	return "", false
}

// FunctionSpan is a value copy of a function definition node.
// Rows are 0-based and inclusive; it never references the syntax tree.
type FunctionSpan struct {
	// Identification
	Key  string // Declarator text, empty when the definition has no declarator
	Name string // Qualified name resolved from the declarator, may be empty

	// Location
	StartRow    int
	EndRow      int
	StartByte   uint32
	EndByte     uint32
	DocStartRow int // Row of the earliest recognized doc comment, -1 when absent

	// Content
	Text    string // Exact text of the definition node
	HasBody bool   // Body is a compound statement
}

// StartLine returns the 1-based start line of the definition
func (fs FunctionSpan) StartLine() int {
	return fs.StartRow + 1
}

// EndLine returns the 1-based end line of the definition
func (fs FunctionSpan) EndLine() int {
	return fs.EndRow + 1
}

// HasDocBlock reports whether a recognized doc block precedes the function
func (fs FunctionSpan) HasDocBlock() bool {
	return fs.DocStartRow >= 0
}

// ReplaceStartRow is the first row an annotation of this function replaces:
// the doc block start when one exists, the definition start otherwise
func (fs FunctionSpan) ReplaceStartRow() int {
	if fs.HasDocBlock() && fs.DocStartRow < fs.StartRow {
		return fs.DocStartRow
	}
	return fs.StartRow
}
