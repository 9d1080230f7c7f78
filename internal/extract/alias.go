package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// AliasTable maps an imported name as it appears in the unit to the symbol
// it resolves to. Non-renaming imports produce identity entries so lookup
// is uniform.
type AliasTable map[string]string

// Resolve substitutes an alias with its target symbol, returning the name
// unchanged when no entry exists (builtins and same-unit symbols).
func (t AliasTable) Resolve(name string) string {
	if target, ok := t[name]; ok {
		return target
	}
	return name
}

// scanImports collects import statements and builds the unit's alias table.
// The preprocessor has already normalized cimport spellings, so only the
// two Python import forms appear here.
func scanImports(root *sitter.Node, source []byte) ([]Import, AliasTable) {
	var imports []Import
	table := make(AliasTable)

	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			imports = append(imports, Import{Statement: nodeText(n, source), Line: lineOf(n)})
			for _, child := range namedChildren(n) {
				switch child.Kind() {
				case "dotted_name":
					name := nodeText(child, source)
					table[rootName(name)] = rootName(name)
				case "aliased_import":
					name := nodeText(child.ChildByFieldName("name"), source)
					alias := nodeText(child.ChildByFieldName("alias"), source)
					if alias != "" {
						table[alias] = name
					}
				}
			}
			return false
		case "import_from_statement":
			imports = append(imports, Import{Statement: nodeText(n, source), Line: lineOf(n)})
			module := n.ChildByFieldName("module_name")
			for _, child := range namedChildren(n) {
				if module != nil && child.StartByte() == module.StartByte() {
					continue
				}
				switch child.Kind() {
				case "dotted_name":
					name := nodeText(child, source)
					table[name] = name
				case "aliased_import":
					name := nodeText(child.ChildByFieldName("name"), source)
					alias := nodeText(child.ChildByFieldName("alias"), source)
					if alias != "" {
						table[alias] = name
					}
				}
			}
			return false
		case "class_definition", "function_definition":
			return false
		}
		return true
	})

	return imports, table
}

func rootName(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}
