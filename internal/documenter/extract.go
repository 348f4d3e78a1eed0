package documenter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/docsplice/internal/keyer"
	"github.com/dshills/docsplice/internal/parser"
	"github.com/dshills/docsplice/internal/splicer"
	"github.com/dshills/docsplice/pkg/types"
)

// Extraction is the cleaned text of one function definition
type Extraction struct {
	Path      string   `json:"path"`
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"` // 1-based, first line of an existing doc block when present
	EndLine   int      `json:"end_line"`
	HasDoc    bool     `json:"has_doc"`
	Text      string   `json:"text"`
	Sections  []string `json:"sections,omitempty"`
}

// ExtractFunction returns the function defined exactly at line (1-based)
// of path in the working tree, with trailing comments stripped and its body
// split into logical sections
func (d *Documenter) ExtractFunction(ctx context.Context, path string, line int) (*Extraction, error) {
	rel, err := d.relative(path)
	if err != nil {
		return nil, err
	}

	content, ok := d.repo.NewSnapshot(rel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSnapshotUnavailable, rel)
	}

	span, err := d.spanAt(ctx, rel, content, line)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %w", rel, line, err)
	}

	lines := splicer.SplitLines(content)
	text, _ := cleanFunction(lines[span.StartRow : span.EndRow+1])

	ext := &Extraction{
		Path:      rel,
		Key:       span.Key,
		Name:      span.Name,
		StartLine: span.ReplaceStartRow() + 1,
		EndLine:   span.EndLine(),
		HasDoc:    span.HasDocBlock(),
		Text:      text,
	}
	if ext.Name == "" && span.Key != "" {
		ext.Name = keyer.HumanName(span.Key)
	}

	if span.HasBody {
		sections, err := d.parser.Sections(ctx, span.Text, parser.DefaultLongLoopThreshold)
		if err != nil {
			d.logger.Debug().Err(err).Str("file", rel).Int("line", line).Msg("no sections")
		} else {
			ext.Sections = sections
		}
	}

	return ext, nil
}

// spanAt returns the definition starting at line
func (d *Documenter) spanAt(ctx context.Context, path, content string, line int) (types.FunctionSpan, error) {
	parsed, err := d.parser.ParseContent(ctx, path, []byte(content))
	if err != nil {
		return types.FunctionSpan{}, err
	}

	span, ok := parsed.FunctionAt(line)
	if !ok {
		return types.FunctionSpan{}, types.ErrFunctionNotFound
	}
	return span, nil
}

// relative maps path to a slash-separated path below the repository root
func (d *Documenter) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}

	rel, err := filepath.Rel(d.repo.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository %s", path, d.repo.Root())
	}
	return filepath.ToSlash(rel), nil
}
