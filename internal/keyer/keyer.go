// Package keyer derives cross-revision identity keys and content hashes for
// the function definitions in a C/C++ source snapshot.
package keyer

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/dshills/docsplice/internal/parser"
	"github.com/dshills/docsplice/pkg/types"
)

// Keyer computes FunctionSets from source text
type Keyer struct {
	parser *parser.Parser
}

// New creates a Keyer backed by p; a nil parser gets the default parser
func New(p *parser.Parser) *Keyer {
	if p == nil {
		p = parser.New()
	}
	return &Keyer{parser: p}
}

// ExtractAll maps every function definition with a compound body to its
// record. The key is the trimmed declarator text. The hash covers the
// enclosing template declaration when there is one, while StartLine stays
// on the definition itself. A later definition with the same key replaces
// an earlier one.
func (k *Keyer) ExtractAll(ctx context.Context, source string) (types.FunctionSet, error) {
	content := []byte(source)
	tree, err := k.parser.Parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("extract functions: %w", err)
	}
	defer tree.Close()

	functions := make(types.FunctionSet)
	for _, node := range tree.Functions() {
		body := node.ChildByFieldName("body")
		if body == nil || body.Type() != "compound_statement" {
			continue
		}

		decl := node.ChildByFieldName("declarator")
		if decl == nil {
			continue
		}

		key := strings.TrimSpace(decl.Content(content))
		functions[key] = types.FunctionRecord{
			Key:         key,
			ContentHash: Hash(parser.HashSource(node).Content(content)),
			StartLine:   int(node.StartPoint().Row) + 1,
		}
	}

	return functions, nil
}

// Hash fingerprints function text with xxh3-128, hex encoded
func Hash(text string) string {
	sum := xxh3.HashString128(text).Bytes()
	return hex.EncodeToString(sum[:])
}

var (
	namePrefix        = regexp.MustCompile(`^([^(]+)`)
	trailingQualifier = regexp.MustCompile(`\s+(const|override|final|noexcept|volatile)\s*$`)
)

// HumanName turns a declarator key into a display name by dropping the
// parameter list and a trailing qualifier. It is a string heuristic only.
func HumanName(key string) string {
	m := namePrefix.FindStringSubmatch(key)
	if m == nil {
		return strings.TrimSpace(key)
	}
	name := strings.TrimSpace(m[1])
	name = trailingQualifier.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
