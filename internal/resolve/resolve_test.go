package resolve

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Path
	}{
		{"Test", Path{Form: Local, Name: "Test"}},
		{"./Test", Path{Form: Local, Name: "Test"}},
		{"child/Test1", Path{Form: Relative, Pkg: "child", Name: "Test1"}},
		{"../Test", Path{Form: Relative, Pkg: "..", Name: "Test"}},
		{"../../labels/Test", Path{Form: Relative, Pkg: "../../labels", Name: "Test"}},
		{"/examples/labels/Test", Path{Form: ModuleRooted, Pkg: "examples/labels", Name: "Test"}},
		{"/Test", Path{Form: ModuleRooted, Pkg: "", Name: "Test"}},
		{"example.com/lib/labels/Test", Path{Form: ImportRooted, Pkg: "example.com/lib/labels", Name: "Test"}},
		{"labels.Test", Path{Form: Qualified, Pkg: "labels", Name: "Test"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, text := range []string{
		"",
		"child/",
		"child//Test",
		"a.b.c",
		"1Test",
		"has space",
		"/examples/../Test",
		"example.com/../Test",
		"child/x.Test",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			assert.ErrorIs(t, err, ErrMalformedPath)
		})
	}
}

func testContext() Context {
	root := filepath.FromSlash("/work/golabel")
	return Context{
		ModulePath: "github.com/abramin/golabel",
		ModuleDir:  root,
		PkgPath:    "github.com/abramin/golabel/examples/general/folder",
		PkgDir:     filepath.Join(root, "examples", "general", "folder"),
		Imports: map[string]string{
			"labels": "github.com/abramin/golabel/examples/general/labels",
		},
	}
}

func TestResolve(t *testing.T) {
	const labels = "github.com/abramin/golabel/examples/general/labels"

	tests := []struct {
		text string
		want Target
	}{
		{"Test", Target{"github.com/abramin/golabel/examples/general/folder", "Test"}},
		{"child/Test1", Target{"github.com/abramin/golabel/examples/general/folder/child", "Test1"}},
		{"../labels/Test", Target{labels, "Test"}},
		{"/examples/general/labels/Test", Target{labels, "Test"}},
		{labels + "/Test", Target{labels, "Test"}},
		{"labels.Test", Target{labels, "Test"}},
		{"/Root", Target{"github.com/abramin/golabel", "Root"}},
		{"../../../Root", Target{"github.com/abramin/golabel", "Root"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Resolve(testContext(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every form that names the same declared label must land on the same target.
func TestResolve_SameLabelFromEveryForm(t *testing.T) {
	ctx := testContext()
	var targets []Target
	for _, text := range []string{
		"../labels/Test",
		"/examples/general/labels/Test",
		"github.com/abramin/golabel/examples/general/labels/Test",
		"labels.Test",
	} {
		got, err := Resolve(ctx, text)
		require.NoError(t, err, text)
		targets = append(targets, got)
	}
	for _, got := range targets[1:] {
		assert.Equal(t, targets[0], got)
	}
}

func TestResolve_Errors(t *testing.T) {
	ctx := testContext()

	_, err := Resolve(ctx, "../../../../Outside")
	assert.ErrorIs(t, err, ErrEscapesModule)

	_, err = Resolve(ctx, "fmt.Stringer")
	assert.ErrorIs(t, err, ErrUnknownImport)

	ctx.ModulePath = ""
	_, err = Resolve(ctx, "child/Test1")
	assert.ErrorIs(t, err, ErrNoModule)

	// Local and import-rooted paths do not need module information.
	_, err = Resolve(ctx, "Test")
	assert.NoError(t, err)
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "example.com/x.Test", Target{"example.com/x", "Test"}.String())
}

func TestFormString(t *testing.T) {
	assert.Equal(t, "module-rooted", ModuleRooted.String())
	assert.Equal(t, "unknown", Form(42).String())
}
