package documenter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docsplice/internal/differ"
	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/internal/metrics"
	"github.com/dshills/docsplice/internal/reviewlog"
	"github.com/dshills/docsplice/internal/revision"
	"github.com/dshills/docsplice/internal/storage"
	"github.com/dshills/docsplice/pkg/types"
)

const engineOld = `#include <cstdio>

int foo(int a) {
    return a + 1;
}

/// Old bar docs
int bar(int b) {
    return b * 2; // double it
}
`

const engineNew = `#include <cstdio>

int foo(int a) {
    return a + 1;
}

/// Old bar docs
int bar(int b) {
    return b * 3; // triple it
}
`

const engineDocumented = `#include <cstdio>

int foo(int a) {
    return a + 1;
}

/**
 * @brief Generated summary.
 */
int bar(int b) {
    return b * 3;	 // scale
}
`

const addNew = `int add(int x, int y) {
    return x + y;
}
`

const addDocumented = `/**
 * @brief Generated summary.
 */
int add(int x, int y) {
    return x + y;	 // scale
}
`

// fakeRepo serves snapshots from memory and records the refs it is asked for
type fakeRepo struct {
	root    string
	branch  string
	commit  string
	changed map[string]types.ChangeStatus
	old     map[string]string
	current map[string]string

	mu        sync.Mutex
	listedRef string
	dates     []string
}

func newFakeRepo(t *testing.T) *fakeRepo {
	return &fakeRepo{
		root:    t.TempDir(),
		branch:  "main",
		commit:  "abc123",
		changed: make(map[string]types.ChangeStatus),
		old:     make(map[string]string),
		current: make(map[string]string),
	}
}

// add registers a changed file and writes its new content to disk
func (f *fakeRepo) add(t *testing.T, path string, status types.ChangeStatus, oldContent, newContent string) {
	t.Helper()
	f.changed[path] = status
	if oldContent != "" {
		f.old[path] = oldContent
	}
	f.current[path] = newContent

	full := filepath.Join(f.root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(newContent), 0o644))
}

func (f *fakeRepo) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, path))
	require.NoError(t, err)
	return string(data)
}

func (f *fakeRepo) Root() string { return f.root }

func (f *fakeRepo) CurrentBranch(ctx context.Context) (string, error) { return f.branch, nil }

func (f *fakeRepo) LastCommitBefore(ctx context.Context, date, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	return f.commit, nil
}

func (f *fakeRepo) ListChangedPaths(ctx context.Context, oldRef string) (map[string]types.ChangeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedRef = oldRef
	return f.changed, nil
}

func (f *fakeRepo) OldSnapshot(ctx context.Context, path, ref string) (string, bool) {
	s, ok := f.old[path]
	return s, ok
}

func (f *fakeRepo) NewSnapshot(path string) (string, bool) {
	s, ok := f.current[path]
	return s, ok
}

// failingGenerator fails every request the way a client does once retries are spent
type failingGenerator struct{}

func (failingGenerator) fail(kind string) (string, error) {
	return "", fmt.Errorf("%w: static %s request: connection refused", types.ErrTransport, kind)
}

func (g failingGenerator) Summarize(ctx context.Context, text string) (string, error) {
	return g.fail("summary")
}

func (g failingGenerator) InlineAnnotate(ctx context.Context, text string) (string, error) {
	return g.fail("inline")
}

func (g failingGenerator) Review(ctx context.Context, file, function, text string) (string, error) {
	return g.fail("review")
}

func (failingGenerator) Provider() string { return "static" }
func (failingGenerator) Model() string    { return "static" }
func (failingGenerator) Close() error     { return nil }

func staticGenerator() *generator.Client {
	backend := &generator.StaticBackend{
		Summary: "Here you go:\n/**\n * @brief Generated summary.\n */\nDone.",
		Inline:  "```json\n[{\"line\": 2, \"comment\": \"scale\"}, {\"line\": 9, \"comment\": \"ignored\"}]\n```",
		Review:  `{"file": "other.cpp", "function": "other", "glitches": ["overflow"]}`,
	}
	return generator.NewClient(generator.ProviderStatic, "static", backend, generator.ClientConfig{})
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDocumenter(t *testing.T, repo *fakeRepo, gen generator.Generator, store storage.Storage, m *metrics.Metrics) *Documenter {
	t.Helper()
	logger := zerolog.Nop()
	d, err := New(Config{
		Repository: repo,
		Generator:  gen,
		Storage:    store,
		Metrics:    m,
		Logger:     &logger,
	})
	require.NoError(t, err)
	d.now = func() time.Time { return fixedNow }
	return d
}

func newState(t *testing.T, repo *fakeRepo) *reviewlog.State {
	return reviewlog.NewState(filepath.Join(t.TempDir(), reviewlog.DefaultLogFile), repo.root)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.StartDate = "2024-01-01"
	opts.Workers = 2
	return opts
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestResolveOldRef(t *testing.T) {
	repo := newFakeRepo(t)
	d := newTestDocumenter(t, repo, nil, nil, nil)
	ctx := context.Background()

	ref, err := d.ResolveOldRef(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "HEAD", ref)

	ref, err = d.ResolveOldRef(ctx, "2024-01-01", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", ref)

	repo.commit = ""
	ref, err = d.ResolveOldRef(ctx, "2001-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, revision.EmptyTree, ref)

	_, err = d.ResolveOldRef(ctx, "last week", "")
	assert.ErrorIs(t, err, types.ErrInvalidDate)
}

func TestResolveStartDate(t *testing.T) {
	repo := newFakeRepo(t)
	d := newTestDocumenter(t, repo, nil, nil, nil)
	state := newState(t, repo)

	date, err := d.ResolveStartDate(Options{}, state)
	require.NoError(t, err)
	assert.Empty(t, date)

	require.NoError(t, state.Cursor.Save(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	date, err = d.ResolveStartDate(Options{}, state)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", date)

	date, err = d.ResolveStartDate(Options{StartDate: "2024-05-05"}, state)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-05", date)
}

func TestCollect(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)
	repo.add(t, "src/add.cpp", types.StatusAdded, "", addNew)
	repo.add(t, "src/same.cpp", types.StatusModified, addNew, addNew)
	repo.add(t, "third_party/lib.cpp", types.StatusAdded, "", addNew)
	repo.add(t, "README.md", types.StatusModified, "old", "new")
	repo.changed["src/gone.cpp"] = types.StatusDeleted
	repo.changed["src/missing.cpp"] = types.StatusModified

	d := newTestDocumenter(t, repo, nil, nil, nil)
	opts := testOptions()
	opts.Exclude = []string{"third_party/**"}

	jobs, err := d.Collect(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "abc123", repo.listedRef)
	assert.Equal(t, []string{"2024-01-01"}, repo.dates)

	require.Len(t, jobs, 2)
	assert.Equal(t, "src/add.cpp", jobs[0].Path)
	assert.Equal(t, []int{1}, jobs[0].ChangedLines)
	assert.Equal(t, []string{"add(int x, int y)"}, jobs[0].Changes.Added)
	assert.Empty(t, jobs[0].Previous)

	engine := jobs[1]
	assert.Equal(t, "src/engine.cpp", engine.Path)
	assert.Equal(t, []int{8}, engine.ChangedLines)
	assert.Equal(t, []string{"bar(int b)"}, engine.Changes.Modified)
	assert.Equal(t, []string{"foo(int a)"}, engine.Changes.Unchanged)
	assert.Equal(t, []differ.Entry{
		{Kind: differ.KindModified, Key: "bar(int b)", Name: "bar", Line: 8},
	}, engine.Entries())
}

func TestCollect_RenamedWithoutOldSnapshot(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/renamed.cpp", types.StatusRenamed, "", addNew)

	d := newTestDocumenter(t, repo, nil, nil, nil)
	jobs, err := d.Collect(context.Background(), testOptions())
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"add(int x, int y)"}, jobs[0].Changes.Added)
}

func TestRun_Document(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)
	repo.add(t, "src/add.cpp", types.StatusAdded, "", addNew)

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	m := metrics.New()
	d := newTestDocumenter(t, repo, staticGenerator(), store, m)
	state := newState(t, repo)

	stats, err := d.Run(context.Background(), testOptions(), state)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesQueued)
	assert.Equal(t, 2, stats.FilesDocumented)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 2, stats.FunctionsDocumented)
	assert.Equal(t, 0, stats.FunctionsReviewed)
	assert.Equal(t, "abc123", stats.OldRef)
	assert.NotEmpty(t, stats.RunID)
	assert.Empty(t, stats.ErrorMessages)

	assert.Equal(t, engineDocumented, repo.read(t, "src/engine.cpp"))
	assert.Equal(t, addDocumented, repo.read(t, "src/add.cpp"))

	// Cursor advanced to the run date
	cursor, ok, err := state.Cursor.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01", cursor.LastDate)

	// Run history
	ctx := context.Background()
	repoRec, err := store.GetRepository(ctx, repo.root)
	require.NoError(t, err)
	assert.Equal(t, "main", repoRec.Branch)

	summary, err := store.Summary(ctx, repoRec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 2, summary.Functions)
	require.NotNil(t, summary.LastRun)
	assert.Equal(t, storage.RunCompleted, summary.LastRun.Status)
	assert.Equal(t, 2, summary.LastRun.Functions)

	functions, err := store.ListFunctions(ctx, repoRec.ID, "src/engine.cpp")
	require.NoError(t, err)
	require.Len(t, functions, 1)
	assert.Equal(t, "bar", functions[0].Name)
	assert.Equal(t, 10, functions[0].StartLine, "line of the rewritten definition")

	assert.Equal(t, 2.0, counterValue(t, m, "docsplice_functions_documented_total"))
	assert.Equal(t, 2.0, counterValue(t, m, "docsplice_files_processed_total"))

	// A second run with nothing changed since the cursor finds no work
	repo.changed = map[string]types.ChangeStatus{}
	stats, err = d.Run(context.Background(), Options{Workers: 1, Document: true}, state)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesQueued)
	assert.Equal(t, []string{"2024-01-01", "2024-06-01"}, repo.dates)
}

func TestRun_DryRun(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)

	d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	state := newState(t, repo)

	var diff bytes.Buffer
	opts := testOptions()
	opts.DryRun = true
	opts.DiffOutput = &diff

	stats, err := d.Run(context.Background(), opts, state)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FunctionsDocumented)

	assert.Equal(t, engineNew, repo.read(t, "src/engine.cpp"), "dry run leaves the file untouched")
	assert.Contains(t, diff.String(), "--- a/src/engine.cpp")
	assert.Contains(t, diff.String(), "-/// Old bar docs")
	assert.Contains(t, diff.String(), "+ * @brief Generated summary.")
	require.Len(t, stats.Files, 1)
	assert.Equal(t, diff.Bytes(), stats.Files[0].Diff)
	assert.False(t, stats.Files[0].Written)

	_, ok, err := state.Cursor.Load()
	require.NoError(t, err)
	assert.False(t, ok, "dry runs do not move the cursor")
}

func TestRun_ReviewSkipsReviewed(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)
	repo.add(t, "src/add.cpp", types.StatusAdded, "", addNew)

	d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	state := newState(t, repo)
	require.NoError(t, state.Log.Append(types.ReviewRecord{File: "src/engine.cpp", Function: "bar", DateTime: fixedNow}))

	opts := testOptions()
	opts.Document = false
	opts.Review = true

	stats, err := d.Run(context.Background(), opts, state)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FunctionsDocumented)
	assert.Equal(t, 1, stats.FunctionsReviewed)
	assert.Equal(t, 1, stats.FunctionsSkipped)

	// Review-only runs never touch sources
	assert.Equal(t, engineNew, repo.read(t, "src/engine.cpp"))
	assert.Equal(t, addNew, repo.read(t, "src/add.cpp"))

	records, err := state.Log.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "src/add.cpp", records[1].File)
	assert.Equal(t, "add", records[1].Function)
	assert.Equal(t, []string{"overflow"}, records[1].Glitches)
	assert.True(t, fixedNow.Equal(records[1].DateTime))
}

func TestRun_TransportFailureAborts(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)
	repo.add(t, "src/add.cpp", types.StatusAdded, "", addNew)

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	d := newTestDocumenter(t, repo, failingGenerator{}, store, nil)
	state := newState(t, repo)

	stats, err := d.Run(context.Background(), testOptions(), state)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)
	require.NotNil(t, stats)
	assert.Zero(t, stats.FilesDocumented)

	assert.Equal(t, engineNew, repo.read(t, "src/engine.cpp"))
	assert.Equal(t, addNew, repo.read(t, "src/add.cpp"))

	_, ok, err := state.Cursor.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	run, err := store.GetRun(context.Background(), stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Contains(t, run.Error, "connection refused")

	pending, err := store.PendingFiles(context.Background(), run.RepositoryID)
	require.NoError(t, err)
	assert.NotEmpty(t, pending, "aborted files stay pending")
}

func TestRun_UnreachableGeneratorFailsFast(t *testing.T) {
	var generates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/generate" {
			generates.Add(1)
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	gen, err := generator.New(generator.Config{Provider: generator.ProviderOllama, Host: server.URL})
	require.NoError(t, err)

	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)

	d := newTestDocumenter(t, repo, gen, nil, nil)
	state := newState(t, repo)
	_, err = d.Run(context.Background(), testOptions(), state)
	require.ErrorIs(t, err, types.ErrTransport)

	assert.Equal(t, int32(0), generates.Load())
	assert.Equal(t, engineNew, repo.read(t, "src/engine.cpp"))
	_, saved, err := state.Cursor.Load()
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestRun_WriteFailureIsPerFile(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/add.cpp", types.StatusAdded, "", addNew)
	// Known to git but its directory is gone, so the rewrite cannot be saved
	repo.changed["gone/engine.cpp"] = types.StatusAdded
	repo.current["gone/engine.cpp"] = engineNew

	d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	state := newState(t, repo)

	stats, err := d.Run(context.Background(), testOptions(), state)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDocumented)
	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.True(t, strings.HasPrefix(stats.ErrorMessages[0], "gone/engine.cpp"))

	assert.Equal(t, addDocumented, repo.read(t, "src/add.cpp"))

	_, ok, err := state.Cursor.Load()
	require.NoError(t, err)
	assert.False(t, ok, "cursor stays put while a file still needs work")
}

func TestRun_ManyFiles(t *testing.T) {
	repo := newFakeRepo(t)
	for i := 0; i < 8; i++ {
		repo.add(t, fmt.Sprintf("src/f%d.cpp", i), types.StatusAdded, "", addNew)
	}

	d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	opts := testOptions()
	opts.Workers = 4

	stats, err := d.Run(context.Background(), opts, newState(t, repo))
	require.NoError(t, err)
	assert.Equal(t, 8, stats.FilesDocumented)
	assert.Equal(t, 8, stats.FunctionsDocumented)
	for i := 0; i < 8; i++ {
		assert.Equal(t, addDocumented, repo.read(t, fmt.Sprintf("src/f%d.cpp", i)))
	}
}

func TestRun_Guards(t *testing.T) {
	repo := newFakeRepo(t)

	d := newTestDocumenter(t, repo, nil, nil, nil)
	_, err := d.Run(context.Background(), testOptions(), newState(t, repo))
	assert.ErrorIs(t, err, ErrNoGenerator)

	d = newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	require.True(t, d.lock.TryAcquire())
	assert.True(t, d.Running())
	_, err = d.Run(context.Background(), testOptions(), newState(t, repo))
	assert.ErrorIs(t, err, ErrRunInProgress)
	d.lock.Release()

	opts := testOptions()
	opts.StartDate = "01/02/2024"
	_, err = d.Run(context.Background(), opts, newState(t, repo))
	assert.ErrorIs(t, err, types.ErrInvalidDate)
}

func TestProcessFile_SkipsMissingAndNested(t *testing.T) {
	const source = `int outer() {
    struct Local {
        int inner() {
            return 1;
        }
    };
    return Local().inner();
}
`
	repo := newFakeRepo(t)
	repo.add(t, "nested.cpp", types.StatusAdded, "", source)

	d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
	job := FileJob{
		Path:         "nested.cpp",
		Content:      source,
		Functions:    types.FunctionSet{"outer()": {Key: "outer()", StartLine: 1}, "inner()": {Key: "inner()", StartLine: 3}},
		ChangedLines: []int{1, 2, 3},
	}

	opts := testOptions()
	opts.DryRun = true
	result, err := d.ProcessFile(context.Background(), job, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"outer"}, result.Documented)
	assert.Equal(t, []string{"line 2", "line 3"}, result.Skipped)
	assert.NotEmpty(t, result.Diff)
}

func TestProcessFile_PreservesBytesOutsideEdits(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "latin-1 header",
			source: "// caf\xe9 latin-1 header\n" + addNew,
			want:   "// caf\xe9 latin-1 header\n" + addDocumented,
		},
		{
			name:   "latin-1 after the function",
			source: addNew + "const char *sign = \"\xa9 2024\";\n",
			want:   addDocumented + "const char *sign = \"\xa9 2024\";\n",
		},
		{
			name:   "crlf line endings",
			source: "// header\r\nint add(int x, int y) {\r\n    return x + y;\r\n}\r\n",
			want: "// header\r\n/**\r\n * @brief Generated summary.\r\n */\r\n" +
				"int add(int x, int y) {\r\n    return x + y;\t // scale\r\n}\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(t)
			repo.add(t, "add.cpp", types.StatusAdded, "", tt.source)

			line := strings.Count(tt.source[:strings.Index(tt.source, "int add")], "\n") + 1
			job := FileJob{
				Path:         "add.cpp",
				Content:      tt.source,
				Functions:    types.FunctionSet{"add(int x, int y)": {Key: "add(int x, int y)", StartLine: line}},
				ChangedLines: []int{line},
			}

			d := newTestDocumenter(t, repo, staticGenerator(), nil, nil)
			result, err := d.ProcessFile(context.Background(), job, testOptions(), nil)
			require.NoError(t, err)
			assert.True(t, result.Written)
			assert.Equal(t, []byte(tt.want), []byte(repo.read(t, "add.cpp")))
		})
	}
}

func TestProcessFile_NoSummaryKeepsExistingDocs(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "engine.cpp", types.StatusModified, engineOld, engineNew)

	backend := &generator.StaticBackend{
		Summary: "I could not summarize this function.",
		Inline:  "[]",
	}
	gen := generator.NewClient(generator.ProviderStatic, "static", backend, generator.ClientConfig{})
	d := newTestDocumenter(t, repo, gen, nil, nil)

	job := FileJob{
		Path:         "engine.cpp",
		Content:      engineNew,
		Functions:    types.FunctionSet{"bar(int b)": {Key: "bar(int b)", StartLine: 8}},
		ChangedLines: []int{8},
	}
	result, err := d.ProcessFile(context.Background(), job, testOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, result.Documented)

	want := strings.Replace(engineNew, "    return b * 3; // triple it\n", "    return b * 3;\n", 1)
	assert.Equal(t, want, repo.read(t, "engine.cpp"))
	assert.Contains(t, repo.read(t, "engine.cpp"), "/// Old bar docs\nint bar(int b) {")
}

func TestExtractFunction(t *testing.T) {
	repo := newFakeRepo(t)
	repo.add(t, "src/engine.cpp", types.StatusModified, engineOld, engineNew)
	d := newTestDocumenter(t, repo, nil, nil, nil)
	ctx := context.Background()

	ext, err := d.ExtractFunction(ctx, "src/engine.cpp", 8)
	require.NoError(t, err)
	assert.Equal(t, "bar", ext.Name)
	assert.Equal(t, "bar(int b)", ext.Key)
	assert.Equal(t, 7, ext.StartLine, "range starts at the doc block")
	assert.Equal(t, 10, ext.EndLine)
	assert.True(t, ext.HasDoc)
	assert.Equal(t, "int bar(int b) {\n    return b * 3;\n}", ext.Text)

	// Absolute paths inside the repository are accepted
	ext, err = d.ExtractFunction(ctx, filepath.Join(repo.root, "src", "engine.cpp"), 3)
	require.NoError(t, err)
	assert.Equal(t, "foo", ext.Name)
	assert.False(t, ext.HasDoc)

	_, err = d.ExtractFunction(ctx, "src/engine.cpp", 2)
	assert.ErrorIs(t, err, types.ErrFunctionNotFound)

	_, err = d.ExtractFunction(ctx, "src/none.cpp", 1)
	assert.ErrorIs(t, err, types.ErrSnapshotUnavailable)

	_, err = d.ExtractFunction(ctx, "/elsewhere/x.cpp", 1)
	assert.Error(t, err)
}

func TestMatchesFilters(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		include []string
		exclude []string
		want    bool
	}{
		{"no filters", "src/a.cpp", nil, nil, true},
		{"included", "src/core/a.cpp", []string{"src/**"}, nil, true},
		{"not included", "tools/a.cpp", []string{"src/**"}, nil, false},
		{"excluded", "src/gen/a.cpp", nil, []string{"**/gen/**"}, false},
		{"exclude wins", "src/gen/a.cpp", []string{"src/**"}, []string{"src/gen/*"}, false},
		{"extension glob", "include/a.hpp", []string{"**/*.hpp"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesFilters(tt.path, tt.include, tt.exclude))
		})
	}
}

func TestRunLock(t *testing.T) {
	var l RunLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.True(t, l.Held())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}
