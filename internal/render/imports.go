package render

import (
	"sort"
	"strings"

	"github.com/jon-edward/stubgen-pyx/internal/extract"
)

// buildImports renders the stub's import block: each statement is trimmed
// to the names the emitted declarations actually reference, duplicates are
// removed, and plain imports are ordered before from-imports.
func (b *Builder) buildImports(mod *extract.Module) []string {
	used := b.usedNames(mod)

	seen := make(map[string]bool)
	var plain, from []string
	for _, imp := range mod.Imports {
		stmt, keep := filterImport(imp.Statement, used)
		if !keep || seen[stmt] {
			continue
		}
		seen[stmt] = true
		if strings.HasPrefix(stmt, "from ") {
			from = append(from, stmt)
		} else {
			plain = append(plain, stmt)
		}
	}
	sort.Strings(plain)
	sort.Strings(from)
	return append(plain, from...)
}

// filterImport trims an import statement down to its referenced items,
// reporting false when nothing in it is referenced. Star imports are kept
// untouched since their bound names are unknowable statically.
func filterImport(stmt string, used map[string]bool) (string, bool) {
	s := strings.TrimSpace(stmt)

	if rest, ok := strings.CutPrefix(s, "from "); ok {
		module, items, found := strings.Cut(rest, " import ")
		if !found {
			return s, true
		}
		items = strings.Trim(strings.TrimSpace(items), "()")
		if strings.TrimSpace(items) == "*" {
			return s, true
		}
		kept := filterItems(items, used, func(name string) string { return name })
		if len(kept) == 0 {
			return "", false
		}
		return "from " + strings.TrimSpace(module) + " import " + strings.Join(kept, ", "), true
	}

	if items, ok := strings.CutPrefix(s, "import "); ok {
		kept := filterItems(items, used, rootName)
		if len(kept) == 0 {
			return "", false
		}
		return "import " + strings.Join(kept, ", "), true
	}

	return s, true
}

// filterItems keeps the comma-separated import items whose bound name, or
// whose imported symbol, is referenced. Aliased items are checked under
// both spellings because the resolver substitutes aliases with their
// targets.
func filterItems(items string, used map[string]bool, bind func(string) string) []string {
	var kept []string
	for _, item := range strings.Split(items, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, alias, aliased := strings.Cut(item, " as ")
		name = strings.TrimSpace(name)
		if aliased {
			if used[strings.TrimSpace(alias)] || used[rootName(name)] {
				kept = append(kept, item)
			}
			continue
		}
		if used[bind(name)] {
			kept = append(kept, item)
		}
	}
	return kept
}

// usedNames collects the root symbols the rendered declarations reference:
// annotation roots, base classes, metaclasses, decorators, and plain-name
// values. Declarations the builder suppresses contribute nothing.
func (b *Builder) usedNames(mod *extract.Module) map[string]bool {
	used := make(map[string]bool)
	for _, bind := range mod.Bindings {
		if !b.visible(bind.Visibility) {
			continue
		}
		addTypeNames(used, bind.Type)
		addValueName(used, bind.Value)
	}
	for _, fn := range mod.Functions {
		if !b.visible(fn.Visibility) {
			continue
		}
		addSignatureNames(used, fn.Params, fn.Return, fn.Decorators)
	}
	for _, cls := range mod.Classes {
		if !b.visible(cls.Visibility) {
			continue
		}
		b.addClassNames(used, cls)
	}
	return used
}

func (b *Builder) addClassNames(used map[string]bool, cls *extract.ClassDecl) {
	for _, base := range cls.Bases {
		used[rootName(base)] = true
	}
	if cls.Metaclass != "" {
		used[rootName(cls.Metaclass)] = true
	}
	addDecoratorNames(used, cls.Decorators)

	for _, m := range cls.Members {
		if m.Visibility == extract.Internal && !m.IsConstructor && !b.IncludePrivate {
			continue
		}
		switch m.Kind {
		case extract.MemberField:
			addTypeNames(used, m.Type)
			addValueName(used, m.Value)
		case extract.MemberProperty:
			for _, acc := range []*extract.MemberDecl{m.Getter, m.Setter} {
				if acc != nil {
					addSignatureNames(used, acc.Params, acc.Return, acc.Decorators)
				}
			}
		default:
			addSignatureNames(used, m.Params, m.Return, m.Decorators)
		}
	}
	for _, nested := range cls.Classes {
		if b.visible(nested.Visibility) {
			b.addClassNames(used, nested)
		}
	}
}

func addSignatureNames(used map[string]bool, params []extract.Param, ret *extract.TypeRef, decorators []string) {
	for _, p := range params {
		addTypeNames(used, p.Type)
		if p.HasDefault {
			addValueName(used, p.Default)
		}
	}
	addTypeNames(used, ret)
	addDecoratorNames(used, decorators)
}

func addTypeNames(used map[string]bool, ref *extract.TypeRef) {
	if ref == nil {
		return
	}
	switch ref.Kind {
	case extract.TypeNamed:
		used[rootName(ref.Name)] = true
	case extract.TypeGeneric:
		addTypeNames(used, ref.Base)
		for i := range ref.Args {
			addTypeNames(used, &ref.Args[i])
		}
	case extract.TypeTuple:
		// Renders as Tuple[...].
		used["Tuple"] = true
		for i := range ref.Args {
			addTypeNames(used, &ref.Args[i])
		}
	case extract.TypeUnknown:
		// Renders as Any.
		used["Any"] = true
	}
}

func addDecoratorNames(used map[string]bool, decorators []string) {
	for _, d := range decorators {
		d = strings.TrimPrefix(d, "@")
		end := len(d)
		for i, r := range d {
			if r == '.' || r == '(' {
				end = i
				break
			}
		}
		if name := strings.TrimSpace(d[:end]); name != "" {
			used[name] = true
		}
	}
}

// addValueName records a rendered value that is a plain (possibly dotted)
// name; literal and elided values contribute nothing.
func addValueName(used map[string]bool, value string) {
	root := rootName(value)
	if isPlainName(root) {
		used[root] = true
	}
}

func rootName(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}

func isPlainName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}
