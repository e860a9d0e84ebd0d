package index

import (
	"go/token"
	"go/types"

	"github.com/abramin/golabel/internal/directive"
)

// Checker compares the type of every attached item with the signature of
// its label. The compiler checks the generated code again; this pass exists
// to report mismatches at the item instead of inside generated files.
type Checker struct {
	fset   *token.FileSet
	labels map[*Declaration]types.Type
}

// NewChecker creates a checker for packages loaded into fset.
func NewChecker(fset *token.FileSet) *Checker {
	return &Checker{fset: fset, labels: make(map[*Declaration]types.Type)}
}

// Check type-checks every linked attachment in idx.
func (c *Checker) Check(idx *Index, diags *Diagnostics) {
	for _, a := range idx.Attachments() {
		if a.Label == nil {
			continue
		}
		want, ok := c.labelType(a.Label, diags)
		if !ok {
			continue
		}
		it := a.Item
		if it.Pkg.info == nil {
			continue
		}
		obj := it.Pkg.info.Defs[it.ident]
		if obj == nil || obj.Type() == types.Typ[types.Invalid] {
			continue
		}
		if !compatible(it, obj, want, a.Label) {
			diags.add(a.Pos, "%s %s has type %s, but label %s requires %s",
				it.Kind, it.Name, typeString(obj.Type(), it.Pkg.types), a.Label.Name, typeString(want, it.Pkg.types))
		}
	}
}

// labelType evaluates the declared signature in the scope of the file that declared it.
func (c *Checker) labelType(d *Declaration, diags *Diagnostics) (types.Type, bool) {
	if t, ok := c.labels[d]; ok {
		return t, t != nil
	}
	c.labels[d] = nil
	if d.Pkg.types == nil {
		return nil, false
	}
	tv, err := types.Eval(c.fset, d.Pkg.types, d.pos, d.Signature)
	if err != nil {
		diags.add(d.Pos, "label %s: invalid type %s: %v", d.Name, d.Signature, err)
		return nil, false
	}
	if !tv.IsType() {
		diags.add(d.Pos, "label %s: %s is not a type", d.Name, d.Signature)
		return nil, false
	}
	c.labels[d] = tv.Type
	return tv.Type, true
}

func compatible(it *Item, obj types.Object, want types.Type, d *Declaration) bool {
	have := obj.Type()
	switch it.Kind {
	case ItemFunc:
		return types.Identical(have, want)
	case ItemVar:
		// Var labels store the var's address, so the types must match exactly.
		if d.Kind == directive.KindVar {
			return types.Identical(have, want)
		}
		return types.AssignableTo(have, want)
	case ItemConst:
		return constAssignable(have, want)
	}
	return false
}

// constAssignable reports whether a constant of type have can be passed as want.
// Untyped constants are accepted when their kind fits; whether the value is
// representable is left to the compiler.
func constAssignable(have, want types.Type) bool {
	b, ok := have.(*types.Basic)
	if !ok || b.Info()&types.IsUntyped == 0 {
		return types.AssignableTo(have, want)
	}
	if types.AssignableTo(types.Default(have), want) {
		return true
	}
	wb, ok := want.Underlying().(*types.Basic)
	if !ok {
		return false
	}
	switch {
	case b.Info()&types.IsBoolean != 0:
		return wb.Info()&types.IsBoolean != 0
	case b.Info()&types.IsString != 0:
		return wb.Info()&types.IsString != 0
	case b.Info()&types.IsInteger != 0:
		return wb.Info()&types.IsNumeric != 0
	case b.Info()&types.IsFloat != 0:
		return wb.Info()&(types.IsFloat|types.IsComplex|types.IsInteger) != 0
	case b.Info()&types.IsComplex != 0:
		return wb.Info()&types.IsNumeric != 0
	}
	return false
}

func typeString(t types.Type, from *types.Package) string {
	return types.TypeString(t, types.RelativeTo(from))
}
