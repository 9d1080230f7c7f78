package render

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/jon-edward/stubgen-pyx/internal/extract"
)

// FlattenInheritance computes each class's effective public surface across
// a set of extracted modules: its own members plus inherited members not
// overridden closer to the class. Base references that resolve to no known
// class are skipped, matching the engine's tolerance for cross-unit
// references. Classes are keyed by name; leftmost base wins ties, own
// members always win.
func FlattenInheritance(modules []*extract.Module) (map[string][]*extract.MemberDecl, error) {
	index := make(map[string]*extract.ClassDecl)
	for _, mod := range modules {
		for _, cls := range mod.Classes {
			if _, dup := index[cls.Name]; !dup {
				index[cls.Name] = cls
			}
		}
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for name := range index {
		_ = g.AddVertex(name)
	}
	for name, cls := range index {
		for _, base := range cls.Bases {
			if _, known := index[base]; !known {
				continue
			}
			if err := g.AddEdge(base, name); err != nil &&
				!errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("inheritance graph for %s: %w", name, err)
			}
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, fmt.Errorf("sorting inheritance graph: %w", err)
	}

	flattened := make(map[string][]*extract.MemberDecl, len(index))
	for _, name := range order {
		cls := index[name]
		seen := make(map[string]bool)
		var members []*extract.MemberDecl

		for _, m := range cls.Members {
			members = append(members, m)
			seen[m.Name] = true
		}
		for _, base := range cls.Bases {
			for _, m := range flattened[base] {
				if seen[m.Name] {
					continue
				}
				members = append(members, m)
				seen[m.Name] = true
			}
		}
		flattened[name] = members
	}
	return flattened, nil
}
