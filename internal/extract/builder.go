package extract

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// builder walks the syntax tree once, applying the classifier and resolver,
// and assembles the Module. Source order of siblings is preserved
// throughout.
type builder struct {
	source   []byte
	aliases  AliasTable
	table    *declTable
	warnings []Warning
}

func (b *builder) warnAt(kind WarningKind, node *sitter.Node, format string, args ...any) {
	b.warnings = append(b.warnings, Warning{
		Kind:    kind,
		Line:    lineOf(node),
		Column:  columnOf(node),
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *builder) buildModule(root *sitter.Node) *Module {
	mod := &Module{}
	mod.Imports, b.aliases = scanImports(root, b.source)

	first := true
	for _, child := range namedChildren(root) {
		b.buildTopLevel(mod, child, nil, first)
		first = false
	}

	disambiguateTopLevel(mod, b)
	mod.Warnings = b.warnings
	return mod
}

func (b *builder) buildTopLevel(mod *Module, node *sitter.Node, decorators []string, first bool) {
	switch node.Kind() {
	case "decorated_definition":
		decs, def := b.splitDecorated(node)
		if def != nil {
			b.buildTopLevel(mod, def, decs, false)
		}
	case "class_definition":
		mod.Classes = append(mod.Classes, b.buildClass(node, decorators))
	case "function_definition":
		mod.Functions = append(mod.Functions, b.buildFunction(node, decorators))
	case "expression_statement":
		inner := node.NamedChild(0)
		if inner == nil {
			return
		}
		switch inner.Kind() {
		case "string":
			if first {
				mod.Doc = cleanDocstring(nodeText(inner, b.source))
			}
		case "assignment":
			if bind := b.buildBinding(inner); bind != nil {
				mod.Bindings = append(mod.Bindings, bind)
			}
		}
	}
}

func (b *builder) splitDecorated(node *sitter.Node) ([]string, *sitter.Node) {
	var decs []string
	for _, d := range findChildrenByKind(node, "decorator") {
		decs = append(decs, strings.TrimSpace(nodeText(d, b.source)))
	}
	return decs, node.ChildByFieldName("definition")
}

// buildBinding models a module-level name with an optional declared type.
// Values are carried as text, never evaluated; only plain-name targets
// become bindings.
func (b *builder) buildBinding(assign *sitter.Node) *Binding {
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return nil
	}
	name := nodeText(left, b.source)
	line := lineOf(assign)
	expo := ExposurePlain
	if b.table.fields[line] {
		expo = b.table.exposure(line)
	}

	bind := &Binding{
		Name:       name,
		Visibility: classify(name, expo),
		Line:       line,
	}
	if typeNode := assign.ChildByFieldName("type"); typeNode != nil {
		ref := b.resolveOrWarn(typeNode, name)
		bind.Type = &ref
	}
	if right := assign.ChildByFieldName("right"); right != nil {
		bind.Value = unparseValue(right, b.source)
	}
	return bind
}

func (b *builder) resolveOrWarn(node *sitter.Node, owner string) TypeRef {
	ref, ok := resolveAnnotation(node, b.source, b.aliases)
	if !ok {
		b.warnAt(ResolutionWarning, node, "could not resolve annotation %q for %s",
			strings.TrimSpace(nodeText(unwrapType(node), b.source)), owner)
	}
	return ref
}

// buildClass assembles a ClassDecl. All three declaration-kind keywords
// produce the same structure; the kind recorded by the preprocessor rides
// along as metadata.
func (b *builder) buildClass(node *sitter.Node, decorators []string) *ClassDecl {
	name := nodeText(node.ChildByFieldName("name"), b.source)
	cls := &ClassDecl{
		Name:       name,
		Slot:       name,
		Kind:       b.table.classKind(lineOf(node)),
		Visibility: classify(name, ExposurePlain),
		Decorators: decorators,
		Line:       lineOf(node),
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for _, arg := range namedChildren(supers) {
			switch arg.Kind() {
			case "identifier", "attribute":
				cls.Bases = append(cls.Bases, nodeText(arg, b.source))
			case "keyword_argument":
				key := nodeText(arg.ChildByFieldName("name"), b.source)
				if key == "metaclass" {
					cls.Metaclass = nodeText(arg.ChildByFieldName("value"), b.source)
				}
			}
		}
	}

	body := node.ChildByFieldName("body")
	var raw []*MemberDecl
	first := true
	for _, child := range namedChildren(body) {
		switch child.Kind() {
		case "expression_statement":
			for _, inner := range namedChildren(child) {
				switch inner.Kind() {
				case "string":
					if first {
						cls.Doc = cleanDocstring(nodeText(inner, b.source))
					}
				case "assignment":
					if f := b.buildField(inner); f != nil {
						raw = append(raw, f)
					}
				}
			}
		case "function_definition":
			raw = append(raw, b.buildMethod(child, nil))
		case "decorated_definition":
			decs, def := b.splitDecorated(child)
			if def == nil {
				continue
			}
			switch def.Kind() {
			case "function_definition":
				raw = append(raw, b.buildMethod(def, decs))
			case "class_definition":
				cls.Classes = append(cls.Classes, b.buildClass(def, decs))
			}
		case "class_definition":
			cls.Classes = append(cls.Classes, b.buildClass(child, nil))
		}
		first = false
	}

	cls.Members = b.mergeProperties(raw)
	b.disambiguateMembers(cls)
	return cls
}

// buildField models an annotated or assigned class-level name. The
// exposure recorded by the preprocessor distinguishes native attribute
// declarations from plain Python fields.
func (b *builder) buildField(assign *sitter.Node) *MemberDecl {
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return nil
	}
	name := nodeText(left, b.source)
	line := lineOf(assign)
	expo := b.table.exposure(line)
	if !b.table.fields[line] {
		expo = ExposurePlain
	}

	m := &MemberDecl{
		Kind:       MemberField,
		Name:       name,
		Slot:       name,
		Exposure:   expo,
		Visibility: classify(name, expo),
		ReadOnly:   b.table.readonly[line],
		Line:       line,
	}
	if typeNode := assign.ChildByFieldName("type"); typeNode != nil {
		ref := b.resolveOrWarn(typeNode, name)
		m.Type = &ref
	}
	if right := assign.ChildByFieldName("right"); right != nil {
		m.Value = unparseValue(right, b.source)
	}
	return m
}

func (b *builder) buildMethod(node *sitter.Node, decorators []string) *MemberDecl {
	fn := b.buildFunction(node, decorators)
	m := &MemberDecl{
		Kind:       MemberMethod,
		Name:       fn.Name,
		Slot:       fn.Name,
		Exposure:   fn.Exposure,
		Visibility: fn.Visibility,
		Doc:        fn.Doc,
		Line:       fn.Line,
		Params:     fn.Params,
		Return:     fn.Return,
		Decorators: fn.Decorators,
		IsAsync:    fn.IsAsync,
	}
	if isConstructor(fn.Name) {
		m.IsConstructor = true
	}
	return m
}

func (b *builder) buildFunction(node *sitter.Node, decorators []string) *FunctionDecl {
	name := nodeText(node.ChildByFieldName("name"), b.source)
	line := lineOf(node)
	expo := b.table.exposure(line)

	fn := &FunctionDecl{
		Name:       name,
		Slot:       name,
		Exposure:   expo,
		Visibility: classify(name, expo),
		Decorators: decorators,
		Line:       line,
		IsAsync:    node.Child(0) != nil && node.Child(0).Kind() == "async",
	}

	fn.Params = b.buildParams(node.ChildByFieldName("parameters"), name)

	if ret := node.ChildByFieldName("return_type"); ret != nil {
		ref := b.resolveOrWarn(ret, name)
		fn.Return = &ref
	}

	if body := node.ChildByFieldName("body"); body != nil {
		if stmt := body.NamedChild(0); stmt != nil && stmt.Kind() == "expression_statement" {
			if s := stmt.NamedChild(0); s != nil && s.Kind() == "string" {
				fn.Doc = cleanDocstring(nodeText(s, b.source))
			}
		}
	}
	return fn
}

func (b *builder) buildParams(params *sitter.Node, owner string) []Param {
	if params == nil {
		return nil
	}
	var out []Param
	for _, p := range namedChildren(params) {
		switch p.Kind() {
		case "identifier":
			out = append(out, Param{Name: nodeText(p, b.source)})
		case "typed_parameter":
			param := Param{Name: nodeText(p.NamedChild(0), b.source)}
			ref := b.resolveOrWarn(p.ChildByFieldName("type"), owner)
			param.Type = &ref
			out = append(out, param)
		case "default_parameter":
			out = append(out, Param{
				Name:       nodeText(p.ChildByFieldName("name"), b.source),
				Default:    unparseValue(p.ChildByFieldName("value"), b.source),
				HasDefault: true,
			})
		case "typed_default_parameter":
			param := Param{
				Name:       nodeText(p.ChildByFieldName("name"), b.source),
				Default:    unparseValue(p.ChildByFieldName("value"), b.source),
				HasDefault: true,
			}
			ref := b.resolveOrWarn(p.ChildByFieldName("type"), owner)
			param.Type = &ref
			out = append(out, param)
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, Param{Name: nodeText(p, b.source)})
		case "keyword_separator":
			out = append(out, Param{Name: "*"})
		case "positional_separator":
			out = append(out, Param{Name: "/"})
		default:
			out = append(out, Param{Name: nodeText(p, b.source)})
		}
	}
	return out
}

// mergeProperties folds the two-step decorator pattern into single Property
// entries keyed by name. The merge is order independent: a setter may
// precede its getter. An orphan setter is kept under a synthesized slot and
// reported as a structural warning.
func (b *builder) mergeProperties(raw []*MemberDecl) []*MemberDecl {
	var out []*MemberDecl
	props := make(map[string]*MemberDecl)

	for _, m := range raw {
		role := accessorRole(m)
		if role == roleNone {
			out = append(out, m)
			continue
		}

		prop, seen := props[m.Name]
		if !seen {
			prop = &MemberDecl{
				Kind:       MemberProperty,
				Name:       m.Name,
				Slot:       m.Name,
				Exposure:   m.Exposure,
				Visibility: classify(m.Name, m.Exposure),
				Line:       m.Line,
			}
			props[m.Name] = prop
			out = append(out, prop)
		}

		switch role {
		case roleGetter:
			if prop.Getter != nil {
				b.warnings = append(b.warnings, Warning{
					Kind: StructuralWarning, Line: m.Line, Column: 1,
					Message: fmt.Sprintf("duplicate getter for property %q", m.Name),
				})
				continue
			}
			prop.Getter = m
			prop.Doc = m.Doc
		case roleSetter:
			if prop.Setter != nil {
				b.warnings = append(b.warnings, Warning{
					Kind: StructuralWarning, Line: m.Line, Column: 1,
					Message: fmt.Sprintf("duplicate setter for property %q", m.Name),
				})
				continue
			}
			prop.Setter = m
		}
	}

	for _, m := range out {
		if m.Kind == MemberProperty && m.Getter == nil {
			m.Slot = m.Name + "#setter"
			b.warnings = append(b.warnings, Warning{
				Kind: StructuralWarning, Line: m.Line, Column: 1,
				Message: fmt.Sprintf("setter for property %q has no matching getter", m.Name),
			})
		}
	}
	return out
}

type accessor int

const (
	roleNone accessor = iota
	roleGetter
	roleSetter
)

func accessorRole(m *MemberDecl) accessor {
	for _, d := range m.Decorators {
		switch {
		case d == "@property":
			return roleGetter
		case d == "@"+m.Name+".getter":
			return roleGetter
		case d == "@"+m.Name+".setter":
			return roleSetter
		}
	}
	return roleNone
}

// disambiguateMembers assigns synthesized slots to duplicate member names
// so a later declaration never overwrites an earlier one.
func (b *builder) disambiguateMembers(cls *ClassDecl) {
	seen := make(map[string]int)
	for _, m := range cls.Members {
		seen[m.Slot]++
		if n := seen[m.Slot]; n > 1 {
			b.warnings = append(b.warnings, Warning{
				Kind: StructuralWarning, Line: m.Line, Column: 1,
				Message: fmt.Sprintf("duplicate declaration of %q in class %s", m.Name, cls.Name),
			})
			m.Slot = fmt.Sprintf("%s#%d", m.Name, n)
		}
	}
}

// disambiguateTopLevel does the same for module-scope declarations.
func disambiguateTopLevel(mod *Module, b *builder) {
	seen := make(map[string]int)
	bump := func(name string, line int) string {
		seen[name]++
		if n := seen[name]; n > 1 {
			b.warnings = append(b.warnings, Warning{
				Kind: StructuralWarning, Line: line, Column: 1,
				Message: fmt.Sprintf("duplicate declaration of %q at module scope", name),
			})
			return fmt.Sprintf("%s#%d", name, n)
		}
		return name
	}
	for _, c := range mod.Classes {
		c.Slot = bump(c.Name, c.Line)
	}
	for _, f := range mod.Functions {
		f.Slot = bump(f.Name, f.Line)
	}
}

// unparseValue renders a default or bound value. Simple literals keep their
// source text; complex expressions are replaced with "...".
func unparseValue(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "integer", "float", "true", "false", "none", "identifier", "string":
		return nodeText(node, source)
	case "unary_operator":
		inner := node.ChildByFieldName("argument")
		if inner != nil {
			switch inner.Kind() {
			case "integer", "float":
				return nodeText(node, source)
			}
		}
	}
	return "..."
}

// cleanDocstring strips the quotes from a docstring literal and removes the
// uniform block indentation from its continuation lines.
func cleanDocstring(raw string) string {
	text := stripStringQuotes(raw)
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(text)
	}

	margin := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	out := []string{strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if margin > 0 && len(line) >= margin {
			line = line[margin:]
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
