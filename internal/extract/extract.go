// Package extract turns raw Cython/Python source text into a structured,
// language-agnostic model of its public API surface, without executing any
// code. Each extraction is a pure function of one unit's text: no global
// state, safe to run concurrently over distinct units.
package extract

import (
	"path/filepath"
	"strings"
)

// Extract parses one source unit and builds its declaration model. The
// returned Module carries any recoverable warnings; a *ParseError is
// returned only for syntax the front-end cannot structure at all.
func Extract(source []byte) (*Module, error) {
	pre, table := preprocess(source)

	tree, err := newFrontend().parse([]byte(pre))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	b := &builder{source: []byte(pre), table: table}
	return b.buildModule(tree.RootNode()), nil
}

// ExtractNamed is Extract with the unit's module name attached, usually
// derived from its file path.
func ExtractNamed(name string, source []byte) (*Module, error) {
	mod, err := Extract(source)
	if err != nil {
		return nil, err
	}
	mod.Name = name
	return mod, nil
}

// Merge folds declarations from a companion unit (a .pxd definition file)
// into the primary module: imports and warnings are appended, classes only
// when the primary unit does not already declare the name.
func Merge(primary, companion *Module) {
	if companion == nil {
		return
	}
	primary.Imports = append(primary.Imports, companion.Imports...)
	primary.Warnings = append(primary.Warnings, companion.Warnings...)

	have := make(map[string]bool, len(primary.Classes))
	for _, c := range primary.Classes {
		have[c.Name] = true
	}
	for _, c := range companion.Classes {
		if !have[c.Name] {
			primary.Classes = append(primary.Classes, c)
		}
	}
}

// ModuleNameFromPath converts a file path into a dotted module name, with
// separator and special characters normalized to underscores.
func ModuleNameFromPath(path string) string {
	path = strings.TrimSuffix(path, filepath.Ext(path))
	parts := strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' })
	for i, p := range parts {
		p = strings.ReplaceAll(p, "-", "_")
		p = strings.ReplaceAll(p, ".", "_")
		parts[i] = strings.ReplaceAll(p, " ", "_")
	}
	return strings.Join(parts, ".")
}
