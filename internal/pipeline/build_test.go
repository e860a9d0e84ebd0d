package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abramin/golabel/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repoRoot is the root of this module, relative to the package directory tests run in.
const repoRoot = "../.."

func goTool(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds generated code with the go command")
	}
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not found")
	}
	return gobin
}

// runGo runs the go command in dir without network access and returns its output.
func runGo(t *testing.T, gobin, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command(gobin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod", "GOWORK=off", "GOTOOLCHAIN=local", "GOPROXY=off")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "go %s:\n%s", strings.Join(args, " "), out)
	return string(out)
}

// newBuildableProject writes a module that carries its own copy of the label
// runtime, so the generated code builds without fetching anything.
func newBuildableProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, name := range []string{"label.go", "registry.go"} {
		src, err := os.ReadFile(filepath.Join(repoRoot, "label", name))
		require.NoError(t, err)
		writeFiles(t, dir, map[string]string{"label/" + name: string(src)})
	}

	writeFiles(t, dir, map[string]string{
		"go.mod": "module example.com/shop\n\ngo 1.23\n",
		"hooks/hooks.go": `package hooks

//label:declare func Hook() string
//label:declare var Limits int

func label(s string) string { return "[" + s + "]" }

//label:Hook
func local() string { return label("local") }
`,
		"plugins/plugins.go": `package plugins

//label:../hooks/Hook
func plugin() string { return "plugin" }

//label:../hooks/Limits
var Max = 3
`,
		"lib/internal/rules/rules.go": `package rules

//label:/hooks/Hook
func strict() string { return "strict" }
`,
		"cmd/app/main.go": `package main

import (
	"fmt"

	"example.com/shop/hooks"
)

func main() {
	for name, fn := range hooks.Hook.IterNamed() {
		fmt.Printf("%s=%s\n", name, fn())
	}
	for name, v := range hooks.Limits.IterNamed() {
		fmt.Printf("%s=%d\n", name, *v)
	}
}
`,
	})
	return dir
}

func TestGenerate_OutputBuildsAndRegisters(t *testing.T) {
	gobin := goTool(t)
	dir := newBuildableProject(t)

	cfg := config.Default()
	cfg.RuntimeImport = "example.com/shop/label"
	cfg.Link = []string{"example.com/shop/cmd/..."}

	res, err := New(cfg, dir, zerolog.Nop()).Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Plan.Warnings, 1)
	assert.Contains(t, res.Plan.Warnings[0].Msg, "example.com/shop/lib/internal/rules is internal")

	link, err := os.ReadFile(filepath.Join(dir, "cmd", "app", "labels_link_gen.go"))
	require.NoError(t, err)
	assert.Contains(t, string(link), `_ "example.com/shop/plugins"`)
	assert.NotContains(t, string(link), "internal/rules")

	runGo(t, gobin, dir, "vet", "./...")

	out := runGo(t, gobin, dir, "run", "./cmd/app")
	assert.ElementsMatch(t, []string{"local=[local]", "plugin=plugin", "Max=3"}, strings.Fields(out))
}

func TestCheck_CheckedInExampleIsCurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("indexes the whole module")
	}
	root, err := filepath.Abs(repoRoot)
	require.NoError(t, err)

	cfg, err := config.LoadFromDir(root)
	require.NoError(t, err)

	res, err := New(cfg, root, zerolog.Nop()).Check(context.Background())
	require.NoError(t, err)

	example := filepath.Join(root, "examples", "general") + string(filepath.Separator)
	for _, path := range res.Stale {
		assert.False(t, strings.HasPrefix(path, example), "%s is out of date", path)
	}
	assert.NotZero(t, res.Index.AttachmentCount)
}
