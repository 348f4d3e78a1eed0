package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DeclaratorName resolves the qualified name of a function definition.
// Scope parts are joined with "::" and template argument lists are dropped.
// It returns false when the declarator holds no identifiable name.
func DeclaratorName(fn *sitter.Node, content []byte) (string, bool) {
	decl := fn.ChildByFieldName("declarator")

	// Unwrap pointer and reference declarators around the function declarator
	for decl != nil && decl.Type() != nodeFunctionDeclarator {
		decl = innerDeclarator(decl)
	}
	if decl == nil {
		return "", false
	}

	name := nameOf(decl.ChildByFieldName("declarator"), content)
	if name == "" {
		return "", false
	}
	return name, true
}

// innerDeclarator steps one level into a wrapping declarator
func innerDeclarator(n *sitter.Node) *sitter.Node {
	if inner := n.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	// reference_declarator has no field name for its operand
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil
	}
	return n.NamedChild(count - 1)
}

func nameOf(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}

	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier", "namespace_identifier",
		"destructor_name", "operator_name", "operator_cast", "primitive_type":
		return strings.TrimSpace(n.Content(content))

	case "qualified_identifier":
		name := nameOf(n.ChildByFieldName("name"), content)
		scope := nameOf(n.ChildByFieldName("scope"), content)
		switch {
		case scope == "":
			return name
		case name == "":
			return scope
		default:
			return scope + "::" + name
		}

	case "template_type", "template_function", "template_method":
		return nameOf(n.ChildByFieldName("name"), content)

	case "template_argument_list", "parameter_list", nodeComment:
		return ""
	}

	// Fall back to the first named child carrying a name
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name := nameOf(n.NamedChild(i), content); name != "" {
			return name
		}
	}
	return ""
}
