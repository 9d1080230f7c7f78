package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jon-edward/stubgen-pyx/internal/extract"
)

// Test Plan for inheritance flattening:
// - Inherit base members that are not overridden
// - Own members win over inherited ones
// - Leftmost base wins when multiple bases declare the same name
// - Unknown base references are skipped, not errors
// - Inheritance cycles are reported as errors

func memberNames(members []*extract.MemberDecl) []string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return names
}

func TestFlattenInheritance(t *testing.T) {
	t.Parallel()

	mod := extractFixture(t, "inherit.pyx")
	flat, err := FlattenInheritance([]*extract.Module{mod})
	require.NoError(t, err)

	assert.Equal(t, []string{"base_method", "shared"}, memberNames(flat["BaseClass"]))
	assert.Equal(t, []string{"child_method", "shared", "base_method"}, memberNames(flat["ChildClass"]))

	// The override stays the child's own declaration.
	for _, m := range flat["ChildClass"] {
		if m.Name == "shared" {
			child := mod.Classes[1]
			assert.Same(t, child.Member("shared"), m)
		}
	}
}

func TestFlattenInheritance_LeftmostBaseWins(t *testing.T) {
	t.Parallel()

	src := `class A:
    def ping(self):
        return "a"

class B:
    def ping(self):
        return "b"

    def extra(self):
        return 1

class C(A, B):
    pass
`
	mod, err := extract.Extract([]byte(src))
	require.NoError(t, err)
	flat, ferr := FlattenInheritance([]*extract.Module{mod})
	require.NoError(t, ferr)

	assert.Equal(t, []string{"ping", "extra"}, memberNames(flat["C"]))
	a := mod.Classes[0]
	for _, m := range flat["C"] {
		if m.Name == "ping" {
			assert.Same(t, a.Member("ping"), m)
		}
	}
}

func TestFlattenInheritance_AcrossModules(t *testing.T) {
	t.Parallel()

	base, err := extract.Extract([]byte("class Base:\n    def ready(self):\n        return True\n"))
	require.NoError(t, err)
	child, err := extract.Extract([]byte("class Impl(Base):\n    pass\n"))
	require.NoError(t, err)

	flat, ferr := FlattenInheritance([]*extract.Module{base, child})
	require.NoError(t, ferr)
	assert.Equal(t, []string{"ready"}, memberNames(flat["Impl"]))
}

func TestFlattenInheritance_UnknownBasesSkipped(t *testing.T) {
	t.Parallel()

	mod, err := extract.Extract([]byte("class Impl(somewhere.Else):\n    def own(self):\n        return 1\n"))
	require.NoError(t, err)
	flat, ferr := FlattenInheritance([]*extract.Module{mod})
	require.NoError(t, ferr)
	assert.Equal(t, []string{"own"}, memberNames(flat["Impl"]))
}

func TestFlattenInheritance_CycleIsAnError(t *testing.T) {
	t.Parallel()

	mod, err := extract.Extract([]byte("class A(B):\n    pass\n\nclass B(A):\n    pass\n"))
	require.NoError(t, err)
	_, ferr := FlattenInheritance([]*extract.Module{mod})
	assert.Error(t, ferr)
}
