package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/dshills/docsplice/pkg/types"
)

// Node types of the C++ grammar used across the package
const (
	nodeFunctionDefinition  = "function_definition"
	nodeFunctionDeclarator  = "function_declarator"
	nodeTemplateDeclaration = "template_declaration"
	nodeCompoundStatement   = "compound_statement"
	nodeComment             = "comment"
	nodeError               = "ERROR"
)

// DefaultMaxFileSize bounds the input accepted by Parse
const DefaultMaxFileSize = 16 << 20

// ErrFileTooLarge is returned when content exceeds the configured size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Parser builds C++ syntax trees with tree-sitter.
// A Parser is safe for concurrent use; every call gets its own tree-sitter parser.
type Parser struct {
	language    *sitter.Language
	maxFileSize int
}

// Option configures a Parser
type Option func(*Parser)

// WithMaxFileSize sets the largest input Parse accepts; zero disables the check
func WithMaxFileSize(n int) Option {
	return func(p *Parser) {
		p.maxFileSize = n
	}
}

// New creates a new Parser instance
func New(opts ...Option) *Parser {
	p := &Parser{
		language:    cpp.GetLanguage(),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a syntax tree over content. Malformed source still yields a
// best-effort tree; only cancellation, oversized input or a parser failure
// return an error. The caller must Close the tree and must not modify
// content while the tree is in use.
func (p *Parser) Parse(ctx context.Context, content []byte) (*Tree, error) {
	if p.maxFileSize > 0 && len(content) > p.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(p.language)

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	return &Tree{tree: tree, content: content}, nil
}

// ParseFile parses a source file and returns value spans for every function
// definition along with any syntax errors. The tree is released before returning.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*types.ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return p.ParseContent(ctx, filePath, content)
}

// ParseContent is ParseFile over in-memory content
func (p *Parser) ParseContent(ctx context.Context, filePath string, content []byte) (*types.ParseResult, error) {
	tree, err := p.Parse(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &types.ParseResult{
		Path:      filePath,
		Functions: tree.Spans(),
	}

	// Syntax errors are non-fatal
	for _, pe := range tree.Errors() {
		result.AddError(filePath, pe.Line, pe.Column, pe.Message)
	}

	return result, nil
}

// Tree is a parsed source buffer
type Tree struct {
	tree    *sitter.Tree
	content []byte
}

// Close releases the underlying tree-sitter tree
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Root returns the root node of the tree
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the buffer the tree indexes into
func (t *Tree) Source() []byte {
	return t.content
}

// HasErrors reports whether the tree contains syntax errors
func (t *Tree) HasErrors() bool {
	return t.Root().HasError()
}

// Errors locates ERROR and missing nodes in the tree
func (t *Tree) Errors() []types.ParseError {
	var errs []types.ParseError
	if !t.HasErrors() {
		return errs
	}

	walk(t.Root(), func(n *sitter.Node) bool {
		switch {
		case n.Type() == nodeError:
			errs = append(errs, types.ParseError{
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
				Message: fmt.Sprintf("syntax error near %q", firstLine(n.Content(t.content))),
			})
			return false
		case n.IsMissing():
			errs = append(errs, types.ParseError{
				Line:    int(n.StartPoint().Row) + 1,
				Column:  int(n.StartPoint().Column) + 1,
				Message: fmt.Sprintf("missing %s", n.Type()),
			})
			return false
		}
		return n.HasError()
	})

	return errs
}

// Functions returns every function definition node in pre-order,
// nested and local definitions included
func (t *Tree) Functions() []*sitter.Node {
	var nodes []*sitter.Node
	walk(t.Root(), func(n *sitter.Node) bool {
		if isFunction(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// isFunction reports whether n is a function definition. The grammar also
// yields function_definition for initialized data members such as
// "int value_ = 0;", which have no body and no function declarator.
func isFunction(n *sitter.Node) bool {
	if n.Type() != nodeFunctionDefinition {
		return false
	}
	if n.ChildByFieldName("body") != nil {
		return true
	}
	for decl := n.ChildByFieldName("declarator"); decl != nil; decl = innerDeclarator(decl) {
		if decl.Type() == nodeFunctionDeclarator {
			return true
		}
	}
	return false
}

// FunctionAtLine returns the definition whose 1-based start line equals line.
// There is no nearest-line fallback; nil means no exact match.
func (t *Tree) FunctionAtLine(line int) *sitter.Node {
	for _, n := range t.Functions() {
		if int(n.StartPoint().Row)+1 == line {
			return n
		}
	}
	return nil
}

// Span copies the location and text of a function definition into a value
func (t *Tree) Span(n *sitter.Node) types.FunctionSpan {
	span := types.FunctionSpan{
		StartRow:    int(n.StartPoint().Row),
		EndRow:      int(n.EndPoint().Row),
		StartByte:   n.StartByte(),
		EndByte:     n.EndByte(),
		DocStartRow: DocStartRow(n, t.content),
		Text:        n.Content(t.content),
	}

	if decl := n.ChildByFieldName("declarator"); decl != nil {
		span.Key = strings.TrimSpace(decl.Content(t.content))
	}

	if name, ok := DeclaratorName(n, t.content); ok {
		span.Name = name
	}

	body := n.ChildByFieldName("body")
	span.HasBody = body != nil && body.Type() == nodeCompoundStatement

	return span
}

// Spans returns value spans for all function definitions
func (t *Tree) Spans() []types.FunctionSpan {
	nodes := t.Functions()
	spans := make([]types.FunctionSpan, 0, len(nodes))
	for _, n := range nodes {
		spans = append(spans, t.Span(n))
	}
	return spans
}

// HashSource returns the node whose text fingerprints a definition:
// the enclosing template declaration when there is one
func HashSource(n *sitter.Node) *sitter.Node {
	if parent := n.Parent(); parent != nil && parent.Type() == nodeTemplateDeclaration {
		return parent
	}
	return n
}

// walk visits nodes in pre-order; returning false skips the node's children
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
