package types

// ParseResult represents the output of parsing a C/C++ source file
type ParseResult struct {
	// Extracted data
	Path      string
	Functions []FunctionSpan

	// Syntax errors found in the tree; parsing itself still succeeded
	Errors []ParseError
}

// ParseError represents a syntax error located in the tree
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}

// FunctionAt returns the span starting at the given 1-based line
func (pr *ParseResult) FunctionAt(line int) (FunctionSpan, bool) {
	for _, fn := range pr.Functions {
		if fn.StartLine() == line {
			return fn, true
		}
	}
	return FunctionSpan{}, false
}
