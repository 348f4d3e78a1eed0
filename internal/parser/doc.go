// Package parser locates function definitions in C and C++ source using tree-sitter.
//
// The parser wraps github.com/smacker/go-tree-sitter with the C++ grammar. It
// answers the questions the rest of docsplice asks of a source file: which
// function definitions exist, which one starts at a given line, what its
// qualified name is, and whether a documentation block precedes it.
//
// # Basic Usage
//
//	p := parser.New()
//	tree, err := p.Parse(ctx, content)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
//
//	if fn := tree.FunctionAtLine(42); fn != nil {
//	    span := tree.Span(fn)
//	    fmt.Printf("%s spans rows %d-%d\n", span.Name, span.StartRow, span.EndRow)
//	}
//
// Nodes returned by a Tree are only valid until Close. Code that needs the
// data afterwards copies it into a types.FunctionSpan with Span or Spans.
//
// # Error Handling
//
// Tree-sitter is error tolerant, so garbled input still produces a tree:
//
//	result, err := p.ParseFile(ctx, "broken.cpp")
//	// err is nil even for syntax errors
//
//	if result.HasErrors() {
//	    for _, parseErr := range result.Errors {
//	        fmt.Printf("line %d: %v\n", parseErr.Line, &parseErr)
//	    }
//	}
//
// Parse only fails on cancellation, on input above the size limit, or when
// tree-sitter itself cannot run.
//
// # Documentation Blocks
//
// A function is considered documented when the uninterrupted run of comment
// nodes directly before it contains a comment opening with /**, /*!, /// or
// //!. DocStartRow reports where that block begins so an annotation can
// replace it instead of stacking a second block on top.
//
// # Sections
//
// Sections splits a function body into logical pieces, keeping statements
// and control structures whole and expanding only long for loops.
package parser
