package parser

import (
	"context"
	"errors"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultLongLoopThreshold is the body length, in lines, above which a for
// loop is expanded into its own sections
const DefaultLongLoopThreshold = 50

var (
	// ErrNoFunction is returned when the text holds no function definition
	ErrNoFunction = errors.New("no function definition found")
	// ErrNoBody is returned when the definition has no compound body
	ErrNoBody = errors.New("function definition has no body")
)

// Sections splits a function into logical sections: one per top-level
// statement, with for loops longer than threshold lines expanded into the
// loop header, the sections of its body and a closing brace.
func (p *Parser) Sections(ctx context.Context, functionText string, threshold int) ([]string, error) {
	if threshold <= 0 {
		threshold = DefaultLongLoopThreshold
	}

	content := []byte(functionText)
	tree, err := p.Parse(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var fn *sitter.Node
	root := tree.Root()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == nodeFunctionDefinition {
			fn = child
			break
		}
		if child.Type() == nodeTemplateDeclaration {
			if fn = firstChildOfType(child, nodeFunctionDefinition); fn != nil {
				break
			}
		}
	}
	if fn == nil {
		return nil, ErrNoFunction
	}

	body := fn.ChildByFieldName("body")
	if body == nil || body.Type() != nodeCompoundStatement {
		return nil, ErrNoBody
	}

	c := &sectionCollector{content: content, threshold: threshold}
	c.collect(body)
	return c.sections, nil
}

type sectionCollector struct {
	content   []byte
	threshold int
	sections  []string
}

func (c *sectionCollector) add(n *sitter.Node) {
	if text := strings.TrimSpace(n.Content(c.content)); text != "" {
		c.sections = append(c.sections, text)
	}
}

func (c *sectionCollector) collect(n *sitter.Node) {
	switch n.Type() {
	case nodeCompoundStatement:
		c.collectChildren(n)

	case "for_statement", "for_range_loop":
		body := firstChildOfType(n, nodeCompoundStatement)
		if body == nil {
			c.add(n)
			return
		}
		lines := int(body.EndPoint().Row-body.StartPoint().Row) + 1
		if lines <= c.threshold {
			c.add(n)
			return
		}
		header := string(c.content[n.StartByte():body.StartByte()])
		c.sections = append(c.sections, strings.TrimSpace(header)+" {")
		c.collectChildren(body)
		c.sections = append(c.sections, "}")

	default:
		// Statements and other control structures stay whole
		c.add(n)
	}
}

func (c *sectionCollector) collectChildren(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if t := child.Type(); t == "{" || t == "}" {
			continue
		}
		c.collect(child)
	}
}

func firstChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}
