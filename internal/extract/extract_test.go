package extract

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Extract:
// - Parse a realistic .pyx fixture end to end (classes, fields, methods)
// - Record the class declaration kind without changing class structure
// - Classify visibility (underscore names, native-internal declarations)
// - Flag constructors and keep them in the model
// - Capture module and class docstrings with indentation cleaned
// - Collect imports, including normalized cimport forms
// - Merge property getter/setter pairs regardless of declaration order
// - Report orphan setters and duplicate declarations as warnings
// - Return ParseError for source the grammar cannot structure
// - Model module-level typed bindings without evaluating values

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../testdata/pyx/" + name)
	require.NoError(t, err)
	return data
}

func TestExtract_MatrixFixture(t *testing.T) {
	t.Parallel()

	mod, err := Extract(loadFixture(t, "matrix.pyx"))
	require.NoError(t, err)
	require.NotNil(t, mod)

	assert.Equal(t, "Dense matrix helpers.", mod.Doc)
	require.Len(t, mod.Imports, 2)
	assert.Equal(t, "import math", mod.Imports[0].Statement)
	assert.Equal(t, "import libc.math", mod.Imports[1].Statement)

	require.Len(t, mod.Classes, 1)
	cls := mod.Classes[0]
	assert.Equal(t, "Matrix", cls.Name)
	assert.Equal(t, ClassNative, cls.Kind)
	assert.Equal(t, Public, cls.Visibility)
	assert.Equal(t, 7, cls.Line)
	assert.Equal(t, "A dense 2D matrix of doubles.", cls.Doc)

	require.Len(t, cls.Members, 7)

	public := 0
	internal := 0
	for _, m := range cls.Members {
		if m.Visibility == Public {
			public++
		} else {
			internal++
		}
	}
	assert.Equal(t, 5, public)
	assert.Equal(t, 2, internal)

	rows := cls.Member("rows")
	require.NotNil(t, rows)
	assert.Equal(t, MemberField, rows.Kind)
	assert.Equal(t, ExposureNativeCallable, rows.Exposure)
	assert.Equal(t, Public, rows.Visibility)
	require.NotNil(t, rows.Type)
	assert.Equal(t, "int", rows.Type.String())
	assert.Equal(t, 10, rows.Line)

	data := cls.Member("_data")
	require.NotNil(t, data)
	assert.Equal(t, ExposureNativeInternal, data.Exposure)
	assert.Equal(t, Internal, data.Visibility)
	require.NotNil(t, data.Type)
	assert.Equal(t, "double", data.Type.String())

	init := cls.Member("__init__")
	require.NotNil(t, init)
	assert.True(t, init.IsConstructor)
	assert.Equal(t, Public, init.Visibility)
	require.Len(t, init.Params, 3)
	assert.Equal(t, "self", init.Params[0].Name)
	assert.Equal(t, "rows", init.Params[1].Name)
	require.NotNil(t, init.Params[1].Type)
	assert.Equal(t, "int", init.Params[1].Type.String())

	scale := cls.Member("scale")
	require.NotNil(t, scale)
	assert.Equal(t, ExposureNativeCallable, scale.Exposure)
	assert.Equal(t, Public, scale.Visibility)
	require.NotNil(t, scale.Return)
	assert.Equal(t, "double", scale.Return.String())

	validate := cls.Member("_validate")
	require.NotNil(t, validate)
	assert.Equal(t, ExposurePlain, validate.Exposure)
	assert.Equal(t, Internal, validate.Visibility)

	require.Len(t, mod.Functions, 1)
	fn := mod.Functions[0]
	assert.Equal(t, "matrix_product", fn.Name)
	assert.Equal(t, Public, fn.Visibility)
	assert.Equal(t, "Multiply two matrices.", fn.Doc)
	require.NotNil(t, fn.Return)
	assert.Equal(t, "Matrix", fn.Return.String())

	assert.Empty(t, mod.Warnings)
}

func TestExtract_ClassKindIsMetadataOnly(t *testing.T) {
	t.Parallel()

	body := ` Shape:
    def area(self):
        return 0

    def name(self):
        return "shape"
`
	kinds := map[string]ClassKind{
		"class":       ClassPlain,
		"cdef class":  ClassNative,
		"cpdef class": ClassNativeAPI,
	}

	var reference *ClassDecl
	for keyword, want := range kinds {
		mod, err := Extract([]byte(keyword + body))
		require.NoError(t, err, keyword)
		require.Len(t, mod.Classes, 1, keyword)

		cls := mod.Classes[0]
		assert.Equal(t, want, cls.Kind, keyword)
		assert.Equal(t, "Shape", cls.Name, keyword)
		require.Len(t, cls.Members, 2, keyword)

		// Identical structure across all three declaration forms.
		if reference == nil {
			reference = cls
			continue
		}
		for i, m := range cls.Members {
			assert.Equal(t, reference.Members[i].Name, m.Name, keyword)
			assert.Equal(t, reference.Members[i].Kind, m.Kind, keyword)
			assert.Equal(t, reference.Members[i].Visibility, m.Visibility, keyword)
			assert.Equal(t, reference.Members[i].Exposure, m.Exposure, keyword)
		}
	}
}

func TestExtract_InheritanceAndMetaclass(t *testing.T) {
	t.Parallel()

	mod, err := Extract(loadFixture(t, "inherit.pyx"))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 2)

	base := mod.Classes[0]
	assert.Equal(t, "BaseClass", base.Name)
	assert.Empty(t, base.Bases)

	child := mod.Classes[1]
	assert.Equal(t, "ChildClass", child.Name)
	assert.Equal(t, []string{"BaseClass"}, child.Bases)

	meta, err := Extract([]byte("class Plugin(Base, metaclass=Registry):\n    pass\n"))
	require.NoError(t, err)
	require.Len(t, meta.Classes, 1)
	assert.Equal(t, []string{"Base"}, meta.Classes[0].Bases)
	assert.Equal(t, "Registry", meta.Classes[0].Metaclass)
}

func TestExtract_PropertyMerge(t *testing.T) {
	t.Parallel()

	mod, err := Extract(loadFixture(t, "props.pyx"))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)
	cls := mod.Classes[0]

	value := cls.Member("value")
	require.NotNil(t, value)
	assert.Equal(t, MemberProperty, value.Kind)
	assert.Equal(t, Public, value.Visibility)
	assert.Equal(t, "Current count.", value.Doc)
	require.NotNil(t, value.Getter)
	require.NotNil(t, value.Setter)
	assert.Len(t, value.Setter.Params, 2)

	frozen := cls.Member("frozen")
	require.NotNil(t, frozen)
	assert.Equal(t, MemberProperty, frozen.Kind)
	assert.NotNil(t, frozen.Getter)
	assert.Nil(t, frozen.Setter)

	assert.Empty(t, mod.Warnings)
}

func TestExtract_PropertyMergeIsOrderIndependent(t *testing.T) {
	t.Parallel()

	src := `class Box:
    @size.setter
    def size(self, v):
        self._s = v

    @property
    def size(self):
        return self._s
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)

	size := mod.Classes[0].Member("size")
	require.NotNil(t, size)
	assert.Equal(t, MemberProperty, size.Kind)
	assert.NotNil(t, size.Getter)
	assert.NotNil(t, size.Setter)
	assert.Empty(t, mod.Warnings)
}

func TestExtract_OrphanSetter(t *testing.T) {
	t.Parallel()

	src := `class Box:
    @size.setter
    def size(self, v):
        self._s = v
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)

	size := mod.Classes[0].Member("size#setter")
	require.NotNil(t, size, "orphan setter should be kept under a synthesized slot")
	assert.Equal(t, "size", size.Name)
	assert.Nil(t, size.Getter)
	assert.NotNil(t, size.Setter)

	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, StructuralWarning, mod.Warnings[0].Kind)
	assert.Contains(t, mod.Warnings[0].Message, "no matching getter")
}

func TestExtract_DuplicateDeclarations(t *testing.T) {
	t.Parallel()

	src := `class C:
    def ping(self):
        return 1

    def ping(self):
        return 2
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)
	cls := mod.Classes[0]
	require.Len(t, cls.Members, 2)

	// Both declarations survive under distinct slots.
	assert.NotNil(t, cls.Member("ping"))
	assert.NotNil(t, cls.Member("ping#2"))

	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, StructuralWarning, mod.Warnings[0].Kind)
	assert.Contains(t, mod.Warnings[0].Message, "duplicate declaration")
}

func TestExtract_DuplicateTopLevel(t *testing.T) {
	t.Parallel()

	src := `def run():
    return 1

def run():
    return 2
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 2)
	assert.Equal(t, "run", mod.Functions[0].Slot)
	assert.Equal(t, "run#2", mod.Functions[1].Slot)
	require.Len(t, mod.Warnings, 1)
	assert.Equal(t, StructuralWarning, mod.Warnings[0].Kind)
}

func TestExtract_ModuleBindings(t *testing.T) {
	t.Parallel()

	mod, err := Extract(loadFixture(t, "props.pyx"))
	require.NoError(t, err)
	require.Len(t, mod.Bindings, 2)

	bound := mod.Bindings[0]
	assert.Equal(t, "BOUND", bound.Name)
	assert.Equal(t, Public, bound.Visibility)
	require.NotNil(t, bound.Type)
	assert.Equal(t, "Counter", bound.Type.String())
	assert.Equal(t, "None", bound.Value)

	hidden := mod.Bindings[1]
	assert.Equal(t, "_hidden", hidden.Name)
	assert.Equal(t, Internal, hidden.Visibility)
	assert.Nil(t, hidden.Type)
	assert.Equal(t, "42", hidden.Value)
}

func TestExtract_ComplexValuesAreElided(t *testing.T) {
	t.Parallel()

	mod, err := Extract([]byte("TABLE = {1: 'a', 2: 'b'}\nOFFSET = -3\n"))
	require.NoError(t, err)
	require.Len(t, mod.Bindings, 2)
	assert.Equal(t, "...", mod.Bindings[0].Value)
	assert.Equal(t, "-3", mod.Bindings[1].Value)
}

func TestExtract_AsyncFunctions(t *testing.T) {
	t.Parallel()

	mod, err := Extract([]byte("async def fetch(url):\n    return url\n"))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	assert.True(t, mod.Functions[0].IsAsync)
}

func TestExtract_ParseError(t *testing.T) {
	t.Parallel()

	cases := []string{
		"def f(:\n    pass\n",
		"class :\n    pass\n",
		"def g(a, b\n",
	}
	for _, src := range cases {
		mod, err := Extract([]byte(src))
		require.Error(t, err, src)
		assert.Nil(t, mod, src)

		var perr *ParseError
		require.True(t, errors.As(err, &perr), src)
		assert.GreaterOrEqual(t, perr.Line, 1, src)
		assert.NotEmpty(t, perr.Message, src)
	}
}

func TestExtract_NestedClasses(t *testing.T) {
	t.Parallel()

	src := `class Outer:
    class Inner:
        def ping(self):
            return 1
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Classes, 1)
	require.Len(t, mod.Classes[0].Classes, 1)
	inner := mod.Classes[0].Classes[0]
	assert.Equal(t, "Inner", inner.Name)
	require.Len(t, inner.Members, 1)
	assert.Equal(t, "ping", inner.Members[0].Name)
}

func TestExtract_DocstringCleaning(t *testing.T) {
	t.Parallel()

	src := `def describe():
    """First line.

    Indented continuation,
    still aligned.
    """
    return None
`
	mod, err := Extract([]byte(src))
	require.NoError(t, err)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, "First line.\n\nIndented continuation,\nstill aligned.", mod.Functions[0].Doc)
}

func TestMerge_CompanionDefinitions(t *testing.T) {
	t.Parallel()

	primary, err := Extract([]byte("class A:\n    pass\n"))
	require.NoError(t, err)
	companion, err := Extract([]byte("import array\n\nclass A:\n    pass\n\nclass B:\n    pass\n"))
	require.NoError(t, err)

	Merge(primary, companion)

	require.Len(t, primary.Classes, 2)
	assert.Equal(t, "A", primary.Classes[0].Name)
	assert.Equal(t, "B", primary.Classes[1].Name)
	require.Len(t, primary.Imports, 1)
	assert.Equal(t, "import array", primary.Imports[0].Statement)
}

func TestModuleNameFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pkg.sub.matrix", ModuleNameFromPath("pkg/sub/matrix.pyx"))
	assert.Equal(t, "my_pkg.mod_v2", ModuleNameFromPath("my-pkg/mod.v2.pyx"))
	assert.Equal(t, "matrix", ModuleNameFromPath("matrix.pyx"))
}
