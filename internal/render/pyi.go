// Package render turns extracted declaration models into .pyi stub text.
package render

import (
	"strings"

	"github.com/jon-edward/stubgen-pyx/internal/extract"
)

// Builder generates stub source from a Module. Internal declarations are
// suppressed unless IncludePrivate is set; constructors are always emitted
// since their signatures document the type.
type Builder struct {
	IncludePrivate bool
}

// BuildModule renders a complete stub file.
func (b *Builder) BuildModule(mod *extract.Module) string {
	var out strings.Builder

	if mod.Doc != "" {
		out.WriteString(quoteDoc(mod.Doc, ""))
		out.WriteString("\n\n")
	}

	out.WriteString("from __future__ import annotations\n")
	for _, stmt := range b.buildImports(mod) {
		out.WriteString(stmt)
		out.WriteString("\n")
	}
	out.WriteString("\n")

	for _, bind := range mod.Bindings {
		if line := b.buildBinding(bind); line != "" {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	if len(mod.Bindings) > 0 {
		out.WriteString("\n")
	}

	for _, fn := range mod.Functions {
		if !b.visible(fn.Visibility) {
			continue
		}
		out.WriteString(b.buildFunction(fn))
		out.WriteString("\n\n")
	}

	for _, cls := range mod.Classes {
		if !b.visible(cls.Visibility) {
			continue
		}
		out.WriteString(b.buildClass(cls))
		out.WriteString("\n\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n"
}

func (b *Builder) visible(v extract.Visibility) bool {
	return v == extract.Public || b.IncludePrivate
}

func (b *Builder) buildBinding(bind *extract.Binding) string {
	if !b.visible(bind.Visibility) {
		return ""
	}
	line := bind.Name
	if bind.Type != nil {
		line += ": " + bind.Type.String()
	}
	if bind.Value != "" {
		line += " = " + bind.Value
	}
	return line
}

func (b *Builder) buildFunction(fn *extract.FunctionDecl) string {
	var out strings.Builder
	for _, d := range fn.Decorators {
		out.WriteString(d)
		out.WriteString("\n")
	}
	if fn.IsAsync {
		out.WriteString("async ")
	}
	out.WriteString("def ")
	out.WriteString(fn.Name)
	out.WriteString(buildSignature(fn.Params, fn.Return))
	out.WriteString(":")
	if fn.Doc != "" {
		out.WriteString("\n")
		out.WriteString(indent(quoteDoc(fn.Doc, "")))
	} else {
		out.WriteString(" ...")
	}
	return out.String()
}

func (b *Builder) buildClass(cls *extract.ClassDecl) string {
	var out strings.Builder
	for _, d := range cls.Decorators {
		out.WriteString(d)
		out.WriteString("\n")
	}
	out.WriteString("class ")
	out.WriteString(cls.Name)
	if len(cls.Bases) > 0 || cls.Metaclass != "" {
		out.WriteString("(")
		parts := append([]string(nil), cls.Bases...)
		if cls.Metaclass != "" {
			parts = append(parts, "metaclass="+cls.Metaclass)
		}
		out.WriteString(strings.Join(parts, ", "))
		out.WriteString(")")
	}
	out.WriteString(":")

	var body strings.Builder
	if cls.Doc != "" {
		body.WriteString(quoteDoc(cls.Doc, ""))
		body.WriteString("\n")
	}
	for _, m := range cls.Members {
		if rendered := b.buildMember(m); rendered != "" {
			body.WriteString(rendered)
			body.WriteString("\n")
		}
	}
	for _, nested := range cls.Classes {
		if !b.visible(nested.Visibility) {
			continue
		}
		body.WriteString(b.buildClass(nested))
		body.WriteString("\n")
	}

	if strings.TrimSpace(body.String()) == "" {
		out.WriteString(" ...")
		return out.String()
	}
	out.WriteString("\n")
	out.WriteString(indent(strings.TrimRight(body.String(), "\n")))
	return out.String()
}

func (b *Builder) buildMember(m *extract.MemberDecl) string {
	if m.Visibility == extract.Internal && !m.IsConstructor && !b.IncludePrivate {
		return ""
	}
	switch m.Kind {
	case extract.MemberField:
		line := m.Name
		if m.Type != nil {
			line += ": " + m.Type.String()
		}
		if m.Value != "" {
			line += " = " + m.Value
		}
		return line
	case extract.MemberProperty:
		var out strings.Builder
		if m.Getter != nil {
			out.WriteString(b.buildMethod(m.Getter))
		}
		if m.Setter != nil {
			if m.Getter != nil {
				out.WriteString("\n")
			}
			out.WriteString(b.buildMethod(m.Setter))
		}
		return out.String()
	default:
		return b.buildMethod(m)
	}
}

func (b *Builder) buildMethod(m *extract.MemberDecl) string {
	var out strings.Builder
	for _, d := range m.Decorators {
		out.WriteString(d)
		out.WriteString("\n")
	}
	if m.IsAsync {
		out.WriteString("async ")
	}
	out.WriteString("def ")
	out.WriteString(m.Name)
	out.WriteString(buildSignature(m.Params, m.Return))
	out.WriteString(":")
	if m.Doc != "" {
		out.WriteString("\n")
		out.WriteString(indent(quoteDoc(m.Doc, "")))
	} else {
		out.WriteString(" ...")
	}
	return out.String()
}

func buildSignature(params []extract.Param, ret *extract.TypeRef) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, buildParam(p))
	}
	sig := "(" + strings.Join(parts, ", ") + ")"
	if ret != nil {
		sig += " -> " + ret.String()
	}
	return sig
}

func buildParam(p extract.Param) string {
	out := p.Name
	if p.Type != nil {
		out += ": " + p.Type.String()
	}
	if p.HasDefault {
		def := p.Default
		if def == "" {
			def = "..."
		}
		out += " = " + def
	}
	return out
}

// quoteDoc wraps cleaned docstring text back into a triple-quoted literal.
func quoteDoc(doc, pad string) string {
	escaped := strings.ReplaceAll(doc, `"""`, `\"\"\"`)
	if !strings.Contains(escaped, "\n") {
		return pad + `"""` + escaped + `"""`
	}
	lines := strings.Split(escaped, "\n")
	var out strings.Builder
	out.WriteString(pad + `"""` + lines[0] + "\n")
	for _, line := range lines[1:] {
		out.WriteString(pad + line + "\n")
	}
	out.WriteString(pad + `"""`)
	return out.String()
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = "    " + line
		}
	}
	return strings.Join(lines, "\n")
}
