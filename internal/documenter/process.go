package documenter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/keyer"
	"github.com/dshills/docsplice/internal/logging"
	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/splicer"
	"github.com/dshills/docsplice/internal/stripper"
	"github.com/dshills/docsplice/pkg/types"
)

// unknownFunction names a changed definition whose key could not be matched
const unknownFunction = "unknown"

// FileResult is the outcome of processing one file
type FileResult struct {
	Path       string
	Documented []string // Names of rewritten functions
	Reviewed   []string // Names appended to the review log
	Skipped    []string // Names not located, nested in another change, or already reviewed
	Written    bool
	Diff       []byte // Unified diff of the edits, dry runs only
	Records    []NamedRecord
}

// NamedRecord is a documented function as it stands after the rewrite
type NamedRecord struct {
	Name string
	types.FunctionRecord
}

// ProcessFile documents and optionally reviews the changed functions of one
// file. The returned result is non-nil whenever any function was handled,
// even if an error follows.
func (d *Documenter) ProcessFile(ctx context.Context, job FileJob, opts Options, state *reviewlog.State) (*FileResult, error) {
	log := logging.FromContext(ctx, d.logger).With().Str("file", job.Path).Logger()
	log.Info().Int("functions", len(job.ChangedLines)).Msg("processing file")

	result := &FileResult{Path: job.Path}

	spans, err := d.locate(ctx, job, result)
	if err != nil {
		return result, err
	}

	var reviewed map[types.ReviewKey]bool
	if opts.Review {
		if state == nil {
			return result, fmt.Errorf("review requested without a review log")
		}
		if reviewed, err = state.Log.Reviewed(); err != nil {
			return result, fmt.Errorf("load review log: %w", err)
		}
	}

	lines := splicer.SplitLines(job.Content)
	edits := make([]types.AnnotationEdit, 0, len(spans))
	documentedKeys := make([]string, 0, len(spans))

	// Newest row first, as the edits will be applied
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		key, _ := job.Functions.KeyAtLine(span.StartLine())
		name := unknownFunction
		if key != "" {
			name = keyer.HumanName(key)
		}
		flog := log.With().Str("function", name).Int("line", span.StartLine()).Logger()
		flog.Info().Msg("processing function")

		cleanText, cleanLines := cleanFunction(lines[span.StartRow : span.EndRow+1])

		if opts.Document {
			edit, err := d.annotate(ctx, span, cleanText, cleanLines)
			if err != nil {
				return result, err
			}
			edit.Function = name
			if edit.DocBlock == "" {
				flog.Warn().Err(types.ErrNoSummary).Msg("keeping the existing documentation")
			}
			edits = append(edits, edit)
			documentedKeys = append(documentedKeys, key)
			result.Documented = append(result.Documented, name)
		}

		if opts.Review {
			reviewKey := types.ReviewKey{File: job.Path, Function: name}
			if reviewed[reviewKey] {
				flog.Info().Msg("skipping review, already reviewed")
				result.Skipped = append(result.Skipped, name)
				d.metrics.FunctionSkipped()
				continue
			}

			resp, err := d.generator.Review(ctx, job.Path, name, cleanText)
			if err != nil {
				return result, err
			}

			record := generator.ParseReview(resp, job.Path, name)
			record.DateTime = d.now()
			if err := state.Log.Append(record); err != nil {
				return result, fmt.Errorf("append review log: %w", err)
			}
			reviewed[reviewKey] = true
			result.Reviewed = append(result.Reviewed, name)
			d.metrics.FunctionReviewed()
			flog.Info().Int("glitches", len(record.Glitches)).Msg("review log updated")
		}
	}

	if !opts.Document || len(edits) == 0 {
		log.Info().Msg("skipped documentation")
		return result, nil
	}

	updated, err := splicer.Apply(lines, edits)
	if err != nil {
		return result, fmt.Errorf("apply edits: %w", err)
	}

	if opts.DryRun {
		diff, err := splicer.Preview(job.Path, lines, edits)
		if err != nil {
			return result, fmt.Errorf("preview edits: %w", err)
		}
		result.Diff = diff
		log.Info().Int("edits", len(edits)).Msg("dry run, file left untouched")
		return result, nil
	}

	newContent := splicer.Join(updated)
	if err := writeFileAtomic(filepath.Join(d.repo.Root(), job.Path), newContent); err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrWriteFailed, job.Path, err)
	}
	result.Written = true
	for range result.Documented {
		d.metrics.FunctionDocumented()
	}

	result.Records = d.rekey(ctx, job, newContent, documentedKeys, result.Documented)
	log.Info().Int("functions", len(result.Documented)).Msg("updated file")

	return result, nil
}

// locate finds the changed definitions of job and orders them by descending start row. Lines without a definition and
// definitions nested inside another changed one are skipped.
func (d *Documenter) locate(ctx context.Context, job FileJob, result *FileResult) ([]types.FunctionSpan, error) {
	parsed, err := d.parser.ParseContent(ctx, job.Path, []byte(job.Content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", job.Path, err)
	}
	if parsed.HasErrors() {
		first := parsed.Errors[0]
		d.logger.Debug().
			Str("file", job.Path).
			Int("errors", len(parsed.Errors)).
			Int("line", first.Line).
			Str("first", first.Message).
			Msg("syntax errors, definitions may be incomplete")
	}

	spans := make([]types.FunctionSpan, 0, len(job.ChangedLines))
	for _, line := range job.ChangedLines {
		span, ok := parsed.FunctionAt(line)
		if !ok {
			d.logger.Debug().Str("file", job.Path).Int("line", line).Msg("no definition at line")
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d", line))
			d.metrics.FunctionSkipped()
			continue
		}
		spans = append(spans, span)
	}

	// Outer definitions win over definitions nested in them
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartRow < spans[j].StartRow })
	kept := spans[:0]
	for _, span := range spans {
		if n := len(kept); n > 0 && span.StartRow <= kept[n-1].EndRow {
			d.logger.Debug().Str("file", job.Path).Int("line", span.StartLine()).Msg("nested in another changed function")
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d", span.StartLine()))
			d.metrics.FunctionSkipped()
			continue
		}
		kept = append(kept, span)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].StartRow > kept[j].StartRow })
	return kept, nil
}

// annotate asks the generator for the doc block and inline comments of one
// function and builds its edit. An existing doc block is replaced only when
// the response carries a new one.
func (d *Documenter) annotate(ctx context.Context, span types.FunctionSpan, cleanText string, cleanLines []string) (types.AnnotationEdit, error) {
	edit := types.AnnotationEdit{
		StartRow: span.ReplaceStartRow(),
		EndRow:   span.EndRow,
		Lines:    cleanLines,
	}

	summary, err := d.generator.Summarize(ctx, cleanText)
	if err != nil {
		return edit, err
	}
	if doc, ok := generator.ExtractDocBlock(summary); ok {
		edit.DocBlock = doc
	} else {
		// Keep the existing doc block rather than dropping it
		edit.StartRow = span.StartRow
	}

	inline, err := d.generator.InlineAnnotate(ctx, splicer.NumberLines(cleanText))
	if err != nil {
		return edit, err
	}
	edit.Inline = generator.ParseInlineComments(inline)

	return edit, nil
}

// rekey fingerprints the documented functions in the rewritten content.
// A key the rewrite no longer yields keeps its pre-edit record.
func (d *Documenter) rekey(ctx context.Context, job FileJob, newContent string, keys, names []string) []NamedRecord {
	after, err := d.keyer.ExtractAll(ctx, newContent)
	if err != nil {
		after = nil
	}

	records := make([]NamedRecord, 0, len(keys))
	for i, key := range keys {
		if key == "" {
			continue
		}
		rec, ok := after[key]
		if !ok {
			rec = job.Functions[key]
		}
		records = append(records, NamedRecord{Name: names[i], FunctionRecord: rec})
	}
	return records
}

// cleanFunction strips trailing comments from the rows of one function and
// returns the cleaned text with its terminated lines. The lines keep the
// line ending of the first row so CRLF files stay CRLF.
func cleanFunction(rows []string) (string, []string) {
	clean := stripper.Strip(strings.Join(rows, ""))
	clean = strings.TrimSuffix(clean, "\n")

	eol := "\n"
	if len(rows) > 0 {
		eol = splicer.LineEnding(rows[0])
	}

	split := strings.Split(clean, "\n")
	lines := make([]string, len(split))
	for i, l := range split {
		split[i] = strings.TrimRight(l, "\r")
		lines[i] = split[i] + eol
	}
	return strings.Join(split, "\n"), lines
}

// writeFileAtomic replaces path through a temporary file, keeping its mode
func writeFileAtomic(path, content string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp := path + ".docsplice.tmp"
	if err := os.WriteFile(tmp, []byte(content), mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
