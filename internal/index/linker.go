package index

import (
	"errors"
	"fmt"
	"go/token"
	"sort"
	"strings"

	"github.com/abramin/golabel/internal/resolve"
)

// resolveTargets resolves the path of every attachment in idx and returns the
// import paths of targets that are not part of idx.
func resolveTargets(idx *Index, diags *Diagnostics) []string {
	loaded := make(map[string]bool)
	for _, p := range idx.Packages {
		loaded[p.PkgPath] = true
	}

	missing := make(map[string]bool)
	for _, p := range idx.Packages {
		for _, it := range p.Items {
			for _, a := range it.Attachments {
				ctx := resolve.Context{
					ModulePath: p.ModulePath,
					ModuleDir:  p.ModuleDir,
					PkgPath:    p.PkgPath,
					PkgDir:     p.Dir,
					Imports:    a.fileImports,
				}
				target, err := resolve.Resolve(ctx, a.Path)
				if err != nil {
					if errors.Is(err, resolve.ErrNoModule) {
						diags.add(a.Pos, "can not resolve %q: %v (labelgen needs module information for relative label paths)", a.Path, err)
						continue
					}
					diags.add(a.Pos, "can not resolve label path %q: %v", a.Path, err)
					continue
				}
				a.Target = target
				if !loaded[target.PkgPath] {
					missing[target.PkgPath] = true
				}
			}
		}
	}

	paths := make([]string, 0, len(missing))
	for ip := range missing {
		paths = append(paths, ip)
	}
	sort.Strings(paths)
	return paths
}

// link binds every resolved attachment to its declaration and validates the pair.
func link(idx *Index, diags *Diagnostics) {
	decls := make(map[resolve.Target]*Declaration)
	pkgs := make(map[string]*Package)
	for _, p := range idx.Packages {
		pkgs[p.PkgPath] = p
		for _, d := range p.Declarations {
			if _, dup := decls[d.Target()]; !dup {
				decls[d.Target()] = d
			}
		}
	}

	for _, a := range idx.Attachments() {
		if a.Target.Name == "" {
			continue
		}
		d, ok := decls[a.Target]
		if !ok {
			if _, loaded := pkgs[a.Target.PkgPath]; !loaded {
				diags.add(a.Pos, "label path %q: package %s not found", a.Path, a.Target.PkgPath)
			} else {
				diags.add(a.Pos, "label path %q: no label %s declared in %s", a.Path, a.Target.Name, a.Target.PkgPath)
			}
			continue
		}
		it := a.Item
		if d.Pkg.PkgPath != it.Pkg.PkgPath && !token.IsExported(d.Name) {
			diags.add(a.Pos, "label %s is not exported by %s and can not be attached from %s", d.Name, d.Pkg.PkgPath, it.Pkg.PkgPath)
			continue
		}
		if d.Pkg.IsMain && d.Pkg.PkgPath != it.Pkg.PkgPath {
			diags.add(a.Pos, "label %s is declared in a main package and can only be attached from it", d.Name)
			continue
		}
		if msg := kindMismatch(it, d); msg != "" {
			diags.add(a.Pos, "%s", msg)
			continue
		}
		a.Label = d
	}

	checkCycles(idx, diags)
}

func kindMismatch(it *Item, d *Declaration) string {
	isFunc := it.Kind == ItemFunc
	if isFunc == d.Kind.IsValue() {
		if isFunc {
			return fmt.Sprintf("%s is a function but label %s holds %s values of type %s", it.Name, d.Name, d.Kind, d.Signature)
		}
		return fmt.Sprintf("%s is a %s but label %s holds functions of type %s", it.Name, it.Kind, d.Name, d.Signature)
	}
	return ""
}

// checkCycles reports attachments whose generated import would close an
// import cycle. The graph is the source imports of the module plus every
// edge the registration files are about to add.
func checkCycles(idx *Index, diags *Diagnostics) {
	graph := make(map[string]map[string]bool)
	addEdge := func(from, to string) {
		if from == to {
			return
		}
		if graph[from] == nil {
			graph[from] = make(map[string]bool)
		}
		graph[from][to] = true
	}

	for _, p := range idx.Packages {
		for _, ip := range p.Imports {
			addEdge(p.PkgPath, ip)
		}
	}
	for _, a := range idx.Attachments() {
		if a.Label != nil {
			addEdge(a.Item.Pkg.PkgPath, a.Label.Pkg.PkgPath)
		}
	}

	reported := make(map[[2]string]bool)
	for _, a := range idx.Attachments() {
		if a.Label == nil {
			continue
		}
		from, to := a.Item.Pkg.PkgPath, a.Label.Pkg.PkgPath
		if from == to || reported[[2]string{from, to}] {
			continue
		}
		if cycle := findPath(graph, to, from); cycle != nil {
			reported[[2]string{from, to}] = true
			diags.add(a.Pos, "attaching %s to %s would create an import cycle: %s",
				a.Item.Name, a.Label.Target(), strings.Join(append([]string{from}, cycle...), " -> "))
			a.Label = nil
		}
	}
}

// findPath returns the packages on a path from start to goal, or nil.
func findPath(graph map[string]map[string]bool, start, goal string) []string {
	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			var path []string
			for n := cur; n != ""; n = parent[n] {
				path = append([]string{n}, path...)
			}
			return path
		}
		next := make([]string, 0, len(graph[cur]))
		for n := range graph[cur] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			if _, seen := parent[n]; !seen {
				parent[n] = cur
				queue = append(queue, n)
			}
		}
	}
	return nil
}
