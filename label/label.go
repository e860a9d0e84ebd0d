// Package label is the runtime half of labelgen.
//
// A label is a named, typed tag that functions, vars and consts anywhere in
// a module can be attached to. Labels are declared with a directive comment
//
//	//label:declare func Handler(ctx context.Context) error
//	//label:declare const Limit int
//
// and items are attached with a directive in their doc comment
//
//	//label:Handler
//	func refresh(ctx context.Context) error { ... }
//
// Running labelgen turns every declaration into a package-level *Func or
// *Value and every attachment into a generated init function that adds the
// item to the label. By the time main runs, every label is fully populated
// and can be iterated from any number of goroutines:
//
//	for name, fn := range Handler.IterNamed() {
//		...
//	}
//
// Iteration order is not specified, but it does not change for the life of
// the process.
//
// A label must not be read from an init function that can run before all
// attaching packages are initialized. The first read seals a label, and a
// later registration panics.
package label

import "iter"

// ValueKind distinguishes labels declared with var from those declared with const.
type ValueKind int

const (
	// Var labels register vars by address and consts by copy.
	Var ValueKind = iota
	// Const labels register a copy of every item taken during init.
	Const
)

func (k ValueKind) String() string {
	if k == Const {
		return "const"
	}
	return "var"
}

// Func is a label whose items are functions of type F.
type Func[F any] struct {
	reg registry[F]
}

// NewFunc creates a function label. Generated code calls it once per declaration.
func NewFunc[F any](name string) *Func[F] {
	return &Func[F]{reg: registry[F]{label: name}}
}

// Name returns the declared name of the label.
func (l *Func[F]) Name() string { return l.reg.label }

// Add registers fn under item. It is reserved for code generated by labelgen.
func (l *Func[F]) Add(item string, fn F) {
	l.reg.add(item, fn)
}

// Iter returns the attached functions.
func (l *Func[F]) Iter() iter.Seq[F] {
	return l.reg.iter()
}

// IterNamed returns the attached functions with the names they were declared under.
func (l *Func[F]) IterNamed() iter.Seq2[string, F] {
	return l.reg.iterNamed()
}

// Len returns the number of attached functions.
func (l *Func[F]) Len() int {
	return len(l.reg.snapshot())
}

// Value is a label whose items are vars or consts of type T.
type Value[T any] struct {
	kind ValueKind
	reg  registry[*T]
}

// NewValue creates a value label. Generated code calls it once per declaration.
func NewValue[T any](name string, kind ValueKind) *Value[T] {
	return &Value[T]{kind: kind, reg: registry[*T]{label: name}}
}

// Name returns the declared name of the label.
func (l *Value[T]) Name() string { return l.reg.label }

// Kind reports whether the label was declared with var or const.
func (l *Value[T]) Kind() ValueKind { return l.kind }

// AddVar registers the var at p. It is reserved for code generated by labelgen.
func (l *Value[T]) AddVar(item string, p *T) {
	if l.kind == Const {
		v := *p
		p = &v
	}
	l.reg.add(item, p)
}

// AddConst registers a copy of v. It is reserved for code generated by labelgen.
func (l *Value[T]) AddConst(item string, v T) {
	l.reg.add(item, &v)
}

// Iter returns references to the attached values.
func (l *Value[T]) Iter() iter.Seq[*T] {
	return l.reg.iter()
}

// IterNamed returns references to the attached values with their declared names.
func (l *Value[T]) IterNamed() iter.Seq2[string, *T] {
	return l.reg.iterNamed()
}

// Len returns the number of attached values.
func (l *Value[T]) Len() int {
	return len(l.reg.snapshot())
}
