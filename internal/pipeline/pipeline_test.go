package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"go.mod": "module example.com/app\n\ngo 1.21\n",
		"labels/labels.go": `package labels

//label:declare func Check(string) error

//label:Check
func nonEmpty(s string) error { return nil }
`,
		"rules/rules.go": `package rules

//label:../labels/Check
func short(s string) error { return nil }
`,
		"cmd/app/main.go": "package main\n\nfunc main() {}\n",
	})
	return dir
}

func newPipeline(dir string) *Pipeline {
	cfg := config.Default()
	cfg.Link = []string{"example.com/app/cmd/..."}
	return New(cfg, dir, zerolog.Nop())
}

func TestGenerate_WritesFilesAndIndex(t *testing.T) {
	dir := newProject(t)

	res, err := newPipeline(dir).Generate(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "labels", "labels_gen.go"),
		filepath.Join(dir, "labels", "labels_init_gen.go"),
		filepath.Join(dir, "rules", "labels_init_gen.go"),
		filepath.Join(dir, "cmd", "app", "labels_link_gen.go"),
	}, res.Write.Written)

	reg, err := os.ReadFile(filepath.Join(dir, "rules", "labels_init_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(reg), `_lbl_labels.Check.Add("short", short)`)

	link, err := os.ReadFile(filepath.Join(dir, "cmd", "app", "labels_link_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(link), `_ "example.com/app/labels"`)
	assert.Contains(t, string(link), `_ "example.com/app/rules"`)

	assert.Equal(t, filepath.Join(dir, ".labelgen", "index.db"), res.DBPath)
	st, err := store.Open(dir, ".labelgen")
	require.NoError(t, err)
	defer st.Close()

	labels, err := st.Labels()
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "Check", labels[0].Name)
	assert.Equal(t, 2, labels[0].AttachmentCount)
}

func TestGenerate_FromPackageDirectory(t *testing.T) {
	dir := newProject(t)

	res, err := newPipeline(filepath.Join(dir, "rules")).Generate(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Write.Written, 4)
	assert.FileExists(t, filepath.Join(dir, "cmd", "app", "labels_link_gen.go"))
	assert.Equal(t, filepath.Join(dir, ".labelgen", "index.db"), res.DBPath)
}

func TestGenerate_SecondRunIsStable(t *testing.T) {
	dir := newProject(t)
	p := newPipeline(dir)

	_, err := p.Generate(context.Background())
	require.NoError(t, err)

	res, err := p.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Write.Written)
	assert.Len(t, res.Write.Unchanged, 4)

	checked, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checked.Stale)
}

func TestCheck_ReportsStaleAndRemovedFiles(t *testing.T) {
	dir := newProject(t)
	p := newPipeline(dir)

	_, err := p.Generate(context.Background())
	require.NoError(t, err)

	writeFiles(t, dir, map[string]string{"rules/rules.go": "package rules\n\nfunc short(s string) error { return nil }\n"})

	res, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "rules", "labels_init_gen.go"),
		filepath.Join(dir, "cmd", "app", "labels_link_gen.go"),
	}, res.Stale)

	gen, err := p.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "rules", "labels_init_gen.go")}, gen.Write.Removed)
	assert.NoFileExists(t, filepath.Join(dir, "rules", "labels_init_gen.go"))
}

func TestGenerate_DiagnosticsPreventWrites(t *testing.T) {
	dir := newProject(t)
	writeFiles(t, dir, map[string]string{"rules/rules.go": `package rules

//label:../labels/Check
func short(n int) error { return nil }
`})

	res, err := newPipeline(dir).Generate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "but label Check requires func(string) error")
	assert.Nil(t, res.Write)
	assert.NoFileExists(t, filepath.Join(dir, "labels", "labels_gen.go"))
}
