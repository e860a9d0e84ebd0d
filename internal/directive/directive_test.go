package directive

import (
	"go/ast"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text   string
		ok     bool
		kind   Kind
		result string
	}{
		{"//label:Test", true, Attach, "Test"},
		{"//label:../labels/Test", true, Attach, "../labels/Test"},
		{"//label:declare func Test() string", true, Declare, "func Test() string"},
		{"//label:declare\tvar X int", true, Declare, "var X int"},
		{"//label:declared", true, Attach, "declared"},
		{"// label:Test", false, 0, ""},
		{"//go:generate labelgen", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, ok := Parse(&ast.Comment{Text: tt.text})
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.result, d.Text)
		})
	}
}

func TestParseDeclarations_Func(t *testing.T) {
	specs, err := ParseDeclarations("func Test() string")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Test", specs[0].Name)
	assert.Equal(t, KindFunc, specs[0].Kind)
	assert.Equal(t, "func() string", specs[0].TypeText)
}

func TestParseDeclarations_Multiple(t *testing.T) {
	specs, err := ParseDeclarations("func Test() string; func Test2(int) int; func Test3(ctx context.Context, s struct{ a int; b int }) error")
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "Test2", specs[1].Name)
	assert.Equal(t, "func(int) int", specs[1].TypeText)
	assert.Equal(t, "Test3", specs[2].Name)
	assert.Contains(t, specs[2].TypeText, "context.Context")
}

func TestParseDeclarations_TrailingSemicolon(t *testing.T) {
	specs, err := ParseDeclarations("func Test();")
	require.NoError(t, err)
	assert.Len(t, specs, 1)
}

func TestParseDeclarations_Values(t *testing.T) {
	specs, err := ParseDeclarations("var Statics int; const Consts, Others uint8")
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, KindVar, specs[0].Kind)
	assert.Equal(t, "int", specs[0].TypeText)
	assert.Equal(t, KindConst, specs[1].Kind)
	assert.Equal(t, "Consts", specs[1].Name)
	assert.Equal(t, "Others", specs[2].Name)
	assert.True(t, specs[2].Kind.IsValue())
	assert.False(t, KindFunc.IsValue())
}

func TestParseDeclarations_Errors(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"", ErrEmptyDeclaration},
		{"func Test[T any]() T", ErrTypeParams},
		{"func (r R) Test()", ErrMethod},
		{"var X = 3", ErrMissingType},
		{"var X int = 3", ErrInitialValue},
		{"const _ int", ErrBlankName},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := ParseDeclarations(tt.text)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDeclarations_Malformed(t *testing.T) {
	for _, text := range []string{"var X", "type X int", "func Test( string", "func Test() { return }"} {
		t.Run(text, func(t *testing.T) {
			_, err := ParseDeclarations(text)
			assert.Error(t, err)
		})
	}
}
