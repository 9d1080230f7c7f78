package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// resolveAnnotation turns a type-annotation expression node into a TypeRef
// using the unit's alias table. It never fails: shapes outside the
// recognized grammar degrade to Unknown, and the caller records a warning.
// The bool result is false exactly when the outcome is a degraded Unknown.
func resolveAnnotation(node *sitter.Node, source []byte, aliases AliasTable) (TypeRef, bool) {
	node = unwrapType(node)
	if node == nil {
		return Unknown(), false
	}

	switch node.Kind() {
	case "identifier":
		return Named(aliases.Resolve(nodeText(node, source))), true

	case "none":
		return Named("None"), true

	case "string":
		// Forward reference: resolve the quoted text when it is a plain
		// (possibly dotted) name.
		inner := strings.TrimSpace(stripStringQuotes(nodeText(node, source)))
		if isDottedName(inner) {
			return Named(aliases.Resolve(rootSegment(inner)) + restSegment(inner)), true
		}
		return Unknown(), false

	case "attribute":
		chain, ok := attributeChain(node, source)
		if !ok {
			return Unknown(), false
		}
		root := chain[0]
		rest := strings.Join(chain[1:], ".")
		return Named(aliases.Resolve(root) + "." + rest), true

	case "generic_type":
		return resolveGenericType(node, source, aliases)

	case "subscript":
		return resolveSubscript(node, source, aliases)

	case "tuple":
		elems, allOK := resolveEach(namedChildren(node), source, aliases)
		return TupleOf(elems...), allOK

	default:
		return Unknown(), false
	}
}

// resolveGenericType handles the Base[Arg1, Arg2, ...] shape the grammar
// produces in annotation position: a name child followed by a
// type_parameter list whose entries are type-wrapped expressions.
func resolveGenericType(node *sitter.Node, source []byte, aliases AliasTable) (TypeRef, bool) {
	children := namedChildren(node)
	if len(children) == 0 {
		return Unknown(), false
	}
	base, baseOK := resolveAnnotation(children[0], source, aliases)
	if !baseOK {
		return Unknown(), false
	}

	var argNodes []*sitter.Node
	for _, child := range children[1:] {
		if child.Kind() == "type_parameter" {
			argNodes = append(argNodes, namedChildren(child)...)
		}
	}
	if len(argNodes) == 1 {
		if inner := unwrapType(argNodes[0]); inner != nil && inner.Kind() == "tuple" {
			argNodes = namedChildren(inner)
		}
	}

	args, allOK := resolveEach(argNodes, source, aliases)
	return collapseTuple(base, args, allOK)
}

// resolveSubscript handles Base[Arg1, Arg2, ...] in expression position,
// where the same shape parses as a subscript instead of a generic_type.
func resolveSubscript(node *sitter.Node, source []byte, aliases AliasTable) (TypeRef, bool) {
	valueNode := node.ChildByFieldName("value")
	base, baseOK := resolveAnnotation(valueNode, source, aliases)
	if !baseOK {
		return Unknown(), false
	}

	var argNodes []*sitter.Node
	for _, child := range namedChildren(node) {
		if valueNode != nil && child.StartByte() == valueNode.StartByte() {
			continue
		}
		argNodes = append(argNodes, child)
	}
	// A parenthesized argument list may parse as a single tuple child.
	if len(argNodes) == 1 && argNodes[0].Kind() == "tuple" {
		argNodes = namedChildren(argNodes[0])
	}

	args, allOK := resolveEach(argNodes, source, aliases)
	return collapseTuple(base, args, allOK)
}

// collapseTuple folds a generic whose base resolves to the tuple type into
// a Tuple of its arguments; everything else stays a Generic.
func collapseTuple(base TypeRef, args []TypeRef, allOK bool) (TypeRef, bool) {
	if base.Kind == TypeNamed && (base.Name == "Tuple" || base.Name == "tuple" || base.Name == "typing.Tuple") {
		return TupleOf(args...), allOK
	}
	return Generic(base, args...), allOK
}

func resolveEach(nodes []*sitter.Node, source []byte, aliases AliasTable) ([]TypeRef, bool) {
	refs := make([]TypeRef, 0, len(nodes))
	allOK := true
	for _, n := range nodes {
		ref, ok := resolveAnnotation(n, source, aliases)
		if !ok {
			allOK = false
		}
		refs = append(refs, ref)
	}
	return refs, allOK
}

// unwrapType steps through the grammar's "type" wrapper down to the
// annotation expression itself.
func unwrapType(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Kind() == "type" {
		if node.NamedChildCount() == 0 {
			return nil
		}
		return node.NamedChild(0)
	}
	return node
}

// attributeChain flattens a dotted attribute expression into its name
// segments, failing when any link is not a plain name.
func attributeChain(node *sitter.Node, source []byte) ([]string, bool) {
	var parts []string
	for node.Kind() == "attribute" {
		attr := node.ChildByFieldName("attribute")
		if attr == nil {
			return nil, false
		}
		parts = append(parts, nodeText(attr, source))
		node = node.ChildByFieldName("object")
		if node == nil {
			return nil, false
		}
	}
	if node.Kind() != "identifier" {
		return nil, false
	}
	parts = append(parts, nodeText(node, source))
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts, true
}

func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if !isIdentifier(seg) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
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

func rootSegment(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[:idx]
	}
	return dotted
}

func restSegment(dotted string) string {
	if idx := strings.IndexByte(dotted, '.'); idx >= 0 {
		return dotted[idx:]
	}
	return ""
}

// stripStringQuotes removes string prefixes and the surrounding quote
// characters from a string literal's source text.
func stripStringQuotes(text string) string {
	text = strings.TrimLeft(text, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return text
}
