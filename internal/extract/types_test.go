package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for annotation resolution:
// - Resolve plain names, keeping unknown symbols as-is
// - Substitute import aliases at the root of a reference
// - Resolve subscripted generics with recursive arguments
// - Collapse Tuple bases (including aliased ones) to tuple types
// - Flatten dotted attribute references
// - Resolve quoted forward references
// - Degrade unsupported expression shapes to Unknown with a warning

func extractOne(t *testing.T, src string) *Module {
	t.Helper()
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	return mod
}

func firstReturn(t *testing.T, mod *Module) TypeRef {
	t.Helper()
	require.NotEmpty(t, mod.Functions)
	require.NotNil(t, mod.Functions[0].Return)
	return *mod.Functions[0].Return
}

func TestResolve_NamedTypes(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f(x: int) -> CustomThing:\n    return x\n")
	ret := firstReturn(t, mod)
	assert.Equal(t, TypeNamed, ret.Kind)
	assert.Equal(t, "CustomThing", ret.Name)

	require.Len(t, mod.Functions[0].Params, 1)
	p := mod.Functions[0].Params[0]
	require.NotNil(t, p.Type)
	assert.Equal(t, Named("int"), *p.Type)
	assert.Empty(t, mod.Warnings)
}

func TestResolve_GenericTypes(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "from typing import Dict\n\ndef f() -> Dict[int, str]:\n    return {}\n")
	ret := firstReturn(t, mod)
	require.Equal(t, TypeGeneric, ret.Kind)
	assert.Equal(t, Named("Dict"), *ret.Base)
	assert.Equal(t, []TypeRef{Named("int"), Named("str")}, ret.Args)
	assert.Equal(t, "Dict[int, str]", ret.String())
}

func TestResolve_NestedGenerics(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f() -> Dict[str, List[int]]:\n    return {}\n")
	ret := firstReturn(t, mod)
	require.Equal(t, TypeGeneric, ret.Kind)
	require.Len(t, ret.Args, 2)
	inner := ret.Args[1]
	require.Equal(t, TypeGeneric, inner.Kind)
	assert.Equal(t, Named("List"), *inner.Base)
	assert.Equal(t, "Dict[str, List[int]]", ret.String())
}

func TestResolve_TupleCollapse(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"def f() -> Tuple[int, str]:\n    return (1, 'a')\n",
		"def f() -> tuple[int, str]:\n    return (1, 'a')\n",
		"from typing import Tuple as tup\n\ndef f() -> tup[int, str]:\n    return (1, 'a')\n",
	} {
		mod := extractOne(t, src)
		ret := firstReturn(t, mod)
		assert.Equal(t, TupleOf(Named("int"), Named("str")), ret, src)
		assert.Equal(t, "Tuple[int, str]", ret.String(), src)
	}
}

func TestResolve_AliasSubstitution(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "import numpy as np\n\ndef f() -> np.ndarray:\n    return None\n")
	ret := firstReturn(t, mod)
	assert.Equal(t, Named("numpy.ndarray"), ret)

	mod = extractOne(t, "from typing import Sequence as Seq\n\ndef f(xs: Seq) -> Seq:\n    return xs\n")
	assert.Equal(t, Named("Sequence"), firstReturn(t, mod))
}

func TestResolve_AttributeChains(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f() -> collections.abc.Mapping:\n    return None\n")
	assert.Equal(t, Named("collections.abc.Mapping"), firstReturn(t, mod))
}

func TestResolve_ForwardReferences(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f() -> \"Matrix\":\n    return None\n")
	assert.Equal(t, Named("Matrix"), firstReturn(t, mod))
	assert.Empty(t, mod.Warnings)

	mod = extractOne(t, "def f() -> \"not a name\":\n    return None\n")
	assert.Equal(t, Unknown(), firstReturn(t, mod))
	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, ResolutionWarning, mod.Warnings[0].Kind)
}

func TestResolve_GenericsInAllAnnotationPositions(t *testing.T) {
	t.Parallel()

	src := `from typing import Any, Dict
from typing import Tuple as tup

PAIRS: Dict[str, tup[Any, int]] = None

def f(d: Dict[int, int]) -> tup[Any, int]:
    return d
`
	mod := extractOne(t, src)
	assert.Empty(t, mod.Warnings)

	require.Len(t, mod.Functions, 1)
	fn := mod.Functions[0]
	require.Len(t, fn.Params, 1)
	require.NotNil(t, fn.Params[0].Type)
	assert.Equal(t, Generic(Named("Dict"), Named("int"), Named("int")), *fn.Params[0].Type)
	require.NotNil(t, fn.Return)
	assert.Equal(t, TupleOf(Named("Any"), Named("int")), *fn.Return)

	require.Len(t, mod.Bindings, 1)
	require.NotNil(t, mod.Bindings[0].Type)
	assert.Equal(t,
		Generic(Named("Dict"), Named("str"), TupleOf(Named("Any"), Named("int"))),
		*mod.Bindings[0].Type)
}

func TestResolve_PropsFixtureSignature(t *testing.T) {
	t.Parallel()

	mod, err := Extract(loadFixture(t, "props.pyx"))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)

	lookup := mod.Functions[0]
	require.Len(t, lookup.Params, 2)
	require.NotNil(t, lookup.Params[0].Type)
	assert.Equal(t, Generic(Named("Dict"), Named("int"), Named("int")), *lookup.Params[0].Type)

	require.NotNil(t, lookup.Return)
	assert.Equal(t, TupleOf(Named("Any"), Named("int")), *lookup.Return)
}

func TestResolve_NoneAnnotation(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f() -> None:\n    return None\n")
	assert.Equal(t, Named("None"), firstReturn(t, mod))
}

func TestResolve_UnknownDegradation(t *testing.T) {
	t.Parallel()

	mod := extractOne(t, "def f(x: 1 + 2):\n    return x\n")
	require.Len(t, mod.Functions[0].Params, 1)
	require.NotNil(t, mod.Functions[0].Params[0].Type)
	assert.Equal(t, Unknown(), *mod.Functions[0].Params[0].Type)
	assert.Equal(t, "Any", mod.Functions[0].Params[0].Type.String())

	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, ResolutionWarning, mod.Warnings[0].Kind)
	assert.Contains(t, mod.Warnings[0].Message, "could not resolve")
}

func TestTypeRef_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "int", Named("int").String())
	assert.Equal(t, "List[int]", Generic(Named("List"), Named("int")).String())
	assert.Equal(t, "Tuple[int, str]", TupleOf(Named("int"), Named("str")).String())
	assert.Equal(t, "Any", Unknown().String())
	assert.Equal(t, "Dict[str, Tuple[int, int]]",
		Generic(Named("Dict"), Named("str"), TupleOf(Named("int"), Named("int"))).String())
}
