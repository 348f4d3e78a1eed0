package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/dshills/docsplice/internal/config"
	"github.com/dshills/docsplice/internal/differ"
	"github.com/dshills/docsplice/internal/generator"
	"github.com/dshills/docsplice/pkg/types"
)

const engineV1 = `#include <cstdio>

int foo(int a) {
    return a + 1;
}

int bar(int b) {
    return b * 2;
}
`

const engineV2 = `#include <cstdio>

int foo(int a) {
    return a + 1;
}

int bar(int b) {
    return b * 3; // triple
}
`

func testFlags(t *testing.T, repo string) *Flags {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Generator.Provider = generator.ProviderStatic
	return &Flags{Repo: repo, Config: &cfg}
}

// runApp runs one command line against a fresh application, so flag
// destinations never leak between runs
func runApp(flags *Flags, out *bytes.Buffer, args ...string) error {
	out.Reset()
	return testApp(flags, out).Run(context.Background(), append([]string{"docsplice"}, args...))
}

func testApp(flags *Flags, out *bytes.Buffer) *cli.Command {
	app := &cli.Command{Name: "docsplice"}

	changes := NewChangesCmd(flags)
	changes.out = out
	document := NewDocumentCmd(flags)
	document.out = out
	extract := NewExtractCmd(flags)
	extract.out = out
	status := NewStatusCmd(flags)
	status.out = out

	app = changes.Register(app)
	app = document.Register(app)
	app = extract.Register(app)
	app = status.Register(app)
	return app
}

// gitRepo creates a repository whose HEAD holds engineV1 and whose working
// tree holds engineV2
func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		c := exec.Command("git", args...)
		c.Dir = root
		c.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := c.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	run("init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(root, "engine.cpp"), []byte(engineV1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# engine\n"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")

	require.NoError(t, os.WriteFile(filepath.Join(root, "engine.cpp"), []byte(engineV2), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# engine v2\n"), 0o644))
	return root
}

func TestFlags_RepoRoot(t *testing.T) {
	dir := t.TempDir()

	flags := &Flags{Repo: dir}
	root, err := flags.RepoRoot()
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	cfg := config.DefaultConfig()
	cfg.Repo = dir
	flags = &Flags{Config: &cfg}
	root, err = flags.RepoRoot()
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = (&Flags{Repo: file}).RepoRoot()
	assert.Error(t, err)

	_, err = (&Flags{Repo: filepath.Join(dir, "missing")}).RepoRoot()
	assert.Error(t, err)
}

func TestRevisionFlags_Options(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 3
	cfg.Branch = "develop"
	cfg.Include = []string{"src/**"}
	cfg.Exclude = []string{"gen/**"}

	rev := revisionFlags{}
	opts := rev.options(&cfg)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, "develop", opts.Branch)
	assert.Equal(t, []string{"src/**"}, opts.Include)
	assert.Equal(t, []string{"gen/**"}, opts.Exclude)
	assert.True(t, opts.Document)

	rev = revisionFlags{startDate: "2024-01-01", branch: "main", exclude: []string{"third_party/**"}}
	opts = rev.options(&cfg)
	assert.Equal(t, "2024-01-01", opts.StartDate)
	assert.Equal(t, "main", opts.Branch)
	assert.Equal(t, []string{"src/**"}, opts.Include)
	assert.Equal(t, []string{"third_party/**"}, opts.Exclude)
}

func TestExtractCmd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "engine.cpp"), []byte(engineV2), 0o644))

	var out bytes.Buffer
	flags := testFlags(t, root)

	err := runApp(flags, &out, "extract", "engine.cpp", "7")
	require.NoError(t, err)
	assert.Equal(t, "// bar  engine.cpp:7-9\nint bar(int b) {\n    return b * 3;\n}\n", out.String())

	err = runApp(flags, &out, "extract", "--json", "engine.cpp", "3")
	require.NoError(t, err)

	var ext map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &ext))
	assert.Equal(t, "foo", ext["name"])
	assert.Equal(t, "foo(int a)", ext["key"])

	err = runApp(flags, &out, "extract", "engine.cpp")
	assert.Error(t, err)

	err = runApp(flags, &out, "extract", "engine.cpp", "zero")
	assert.Error(t, err)

	err = runApp(flags, &out, "extract", "engine.cpp", "2")
	assert.Error(t, err)
}

func TestStatusCmd_NoRuns(t *testing.T) {
	root := t.TempDir()

	var out bytes.Buffer
	flags := testFlags(t, root)

	require.NoError(t, runApp(flags, &out, "status"))
	assert.Contains(t, out.String(), "Last documented: never")
	assert.Contains(t, out.String(), "No runs recorded")
}

func TestChangesCmd(t *testing.T) {
	root := gitRepo(t)

	var out bytes.Buffer
	flags := testFlags(t, root)

	require.NoError(t, runApp(flags, &out, "changes", "--json"))

	var fc fileChanges
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	assert.Equal(t, "engine.cpp", fc.Path)
	assert.Equal(t, "M", fc.Status)
	assert.Equal(t, []differ.Entry{
		{Kind: differ.KindModified, Key: "bar(int b)", Name: "bar", Line: 7},
	}, fc.Changes)

	require.NoError(t, runApp(flags, &out, "changes"))
	assert.Contains(t, out.String(), "FILE")
	assert.Contains(t, out.String(), "engine.cpp")
	assert.Contains(t, out.String(), "modified")
}

func TestDocumentCmd_EndToEnd(t *testing.T) {
	root := gitRepo(t)
	flags := testFlags(t, root)
	metricsFile := filepath.Join(t.TempDir(), "docsplice.prom")

	var out bytes.Buffer

	// Dry run prints the diff and writes nothing
	require.NoError(t, runApp(flags, &out, "document", "--dry-run"))
	assert.Contains(t, out.String(), "+ * @brief Generated summary.")
	data, err := os.ReadFile(filepath.Join(root, "engine.cpp"))
	require.NoError(t, err)
	assert.Equal(t, engineV2, string(data))

	require.NoError(t, runApp(flags, &out,
		"document", "--review", "--workers", "2", "--metrics-file", metricsFile))

	data, err = os.ReadFile(filepath.Join(root, "engine.cpp"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "/**\n * @brief Generated summary.\n */\nint bar(int b) {\n    return b * 3;\n}\n")
	assert.Contains(t, string(data), "int foo(int a) {\n    return a + 1;\n}\n")

	assert.FileExists(t, filepath.Join(root, "code_review_log.json"))
	assert.FileExists(t, filepath.Join(root, "last_doc_date.json"))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "docsplice_functions_documented_total 1")

	require.NoError(t, runApp(flags, &out, "status", "--files"))
	assert.NotContains(t, out.String(), "Last documented: never")
	assert.Contains(t, out.String(), "Files: 1 success, 0 failure, 0 pending")
	assert.Contains(t, out.String(), "Functions documented: 1")
	assert.Contains(t, out.String(), "completed")

	require.NoError(t, runApp(flags, &out, "status", "--function", "BA"))
	assert.Contains(t, out.String(), "FUNCTION")
	assert.Contains(t, out.String(), "bar")
	assert.Contains(t, out.String(), "engine.cpp")

	require.NoError(t, runApp(flags, &out, "status", "--function", "nothing"))
	assert.Contains(t, out.String(), `No documented function matches "nothing"`)
}

func TestDocumentCmd_GeneratorDown(t *testing.T) {
	root := gitRepo(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	flags := testFlags(t, root)
	flags.Config.Generator.Provider = generator.ProviderOllama
	flags.Config.Generator.Host = server.URL

	var out bytes.Buffer
	err := runApp(flags, &out, "document")
	require.ErrorIs(t, err, types.ErrTransport)

	data, err := os.ReadFile(filepath.Join(root, "engine.cpp"))
	require.NoError(t, err)
	assert.Equal(t, engineV2, string(data))
	assert.NoFileExists(t, filepath.Join(root, "last_doc_date.json"))
}

func TestDocumentCmd_NothingToDo(t *testing.T) {
	root := t.TempDir()

	var out bytes.Buffer
	flags := testFlags(t, root)

	err := runApp(flags, &out, "document", "--no-document")
	assert.Error(t, err)
}
