package gen

import (
	"strconv"
)

// aliasSet assigns import names to the label packages a registration file
// refers to. Names are derived from the package name and numbered when two
// packages share one.
type aliasSet struct {
	byPath map[string]string
	taken  map[string]bool
}

func newAliasSet() *aliasSet {
	return &aliasSet{byPath: make(map[string]string), taken: make(map[string]bool)}
}

func (s *aliasSet) add(importPath, pkgName string) {
	if _, ok := s.byPath[importPath]; ok {
		return
	}
	base := aliasPrefix + pkgName
	name := base
	for n := 2; s.taken[name]; n++ {
		name = base + strconv.Itoa(n)
	}
	s.taken[name] = true
	s.byPath[importPath] = name
}

func (s *aliasSet) alias(importPath string) string {
	return s.byPath[importPath]
}

// imports returns the set as an import name to path map.
func (s *aliasSet) imports() map[string]string {
	m := make(map[string]string, len(s.byPath))
	for ip, name := range s.byPath {
		m[name] = ip
	}
	return m
}
