package extract

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// frontend wraps the tree-sitter Python grammar. The preprocessor has
// already normalized the dialect-specific declaration keywords away, so the
// stock grammar covers the whole input.
type frontend struct {
	language *sitter.Language
}

func newFrontend() *frontend {
	return &frontend{language: sitter.NewLanguage(python.Language())}
}

// parse produces a syntax tree for the preprocessed source. The returned
// tree must be closed by the caller. A tree containing ERROR or missing
// nodes is reported as a *ParseError for the unit.
func (f *frontend) parse(source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(f.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Line: 1, Column: 1, Message: "could not tokenize source"}
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := firstSyntaxError(root, source)
		tree.Close()
		return nil, perr
	}
	return tree, nil
}

// firstSyntaxError walks to the first ERROR or missing node and derives a
// position and a human-readable cause from it.
func firstSyntaxError(node *sitter.Node, source []byte) *ParseError {
	var found *sitter.Node
	walkTree(node, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		return &ParseError{Line: 1, Column: 1, Message: "malformed syntax"}
	}

	line := int(found.StartPosition().Row) + 1
	col := int(found.StartPosition().Column) + 1
	return &ParseError{Line: line, Column: col, Message: describeSyntaxError(found, source)}
}

func describeSyntaxError(node *sitter.Node, source []byte) string {
	if node.IsMissing() {
		return fmt.Sprintf("missing %q", node.Kind())
	}
	text := strings.TrimSpace(nodeText(node, source))
	if strings.Contains(text, "\"") || strings.Contains(text, "'") {
		if strings.Count(text, "\"")%2 == 1 || strings.Count(text, "'")%2 == 1 {
			return "unterminated string"
		}
	}
	if text == "" {
		return "invalid indentation"
	}
	if len(text) > 24 {
		text = text[:24] + "..."
	}
	return fmt.Sprintf("unexpected token %q", text)
}

// nodeText extracts the text content of a node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree and calls the visitor for each node.
// Returning false stops descent into that node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// namedChildren returns the named children of a node.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		out = append(out, node.NamedChild(uint(i)))
	}
	return out
}

// findChildrenByKind finds all child nodes with the given kind.
func findChildrenByKind(node *sitter.Node, kind string) []*sitter.Node {
	var results []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == kind {
			results = append(results, child)
		}
	}
	return results
}

// lineOf converts a node position to a 1-based source line.
func lineOf(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func columnOf(node *sitter.Node) int {
	return int(node.StartPosition().Column) + 1
}
