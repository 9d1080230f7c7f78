package extract

import "fmt"

// ClassKind distinguishes the three class declaration forms. The forms are
// structurally identical after parsing; the kind is carried as metadata only.
type ClassKind string

const (
	ClassPlain     ClassKind = "class"
	ClassNative    ClassKind = "cdef class"
	ClassNativeAPI ClassKind = "cpdef class"
)

// Exposure is the per-declaration marker for the plain / native-callable /
// native-internal qualifiers.
type Exposure int

const (
	ExposurePlain Exposure = iota
	ExposureNativeCallable
	ExposureNativeInternal
)

func (e Exposure) String() string {
	switch e {
	case ExposureNativeCallable:
		return "native-callable"
	case ExposureNativeInternal:
		return "native-internal"
	default:
		return "plain"
	}
}

// Visibility classifies a declaration as part of the public surface or not.
type Visibility int

const (
	Public Visibility = iota
	Internal
)

func (v Visibility) String() string {
	if v == Internal {
		return "internal"
	}
	return "public"
}

// MemberKind is the variant tag for class members.
type MemberKind int

const (
	MemberField MemberKind = iota
	MemberMethod
	MemberProperty
)

// TypeKind is the variant tag for TypeRef.
type TypeKind int

const (
	TypeNamed TypeKind = iota
	TypeGeneric
	TypeTuple
	TypeUnknown
)

// TypeRef is a resolved type annotation. After resolution it never holds a
// raw alias token; aliases are substituted with their target symbol.
type TypeRef struct {
	Kind TypeKind
	Name string    // TypeNamed: the (possibly dotted) symbol
	Base *TypeRef  // TypeGeneric: the subscripted base
	Args []TypeRef // TypeGeneric arguments / TypeTuple elements
}

// Named returns a TypeRef for a bare symbol.
func Named(name string) TypeRef {
	return TypeRef{Kind: TypeNamed, Name: name}
}

// Generic returns a TypeRef for a subscripted base type.
func Generic(base TypeRef, args ...TypeRef) TypeRef {
	return TypeRef{Kind: TypeGeneric, Base: &base, Args: args}
}

// TupleOf returns a TypeRef for an ordered element tuple.
func TupleOf(elems ...TypeRef) TypeRef {
	return TypeRef{Kind: TypeTuple, Args: elems}
}

// Unknown is the degraded resolution outcome. It is a first-class value,
// not an error.
func Unknown() TypeRef {
	return TypeRef{Kind: TypeUnknown}
}

// String renders the TypeRef as Python annotation text.
func (t TypeRef) String() string {
	switch t.Kind {
	case TypeNamed:
		return t.Name
	case TypeGeneric:
		return t.Base.String() + "[" + joinTypes(t.Args) + "]"
	case TypeTuple:
		return "Tuple[" + joinTypes(t.Args) + "]"
	default:
		return "Any"
	}
}

func joinTypes(refs []TypeRef) string {
	out := ""
	for i, r := range refs {
		if i > 0 {
			out += ", "
		}
		out += r.String()
	}
	return out
}

// Param is one entry in an ordered parameter list. Separator markers ("*",
// "/") are kept as params so signatures round-trip.
type Param struct {
	Name       string
	Type       *TypeRef
	Default    string // literal text, or "..." for complex expressions
	HasDefault bool
}

// MemberDecl is a class member: field, method, or property.
type MemberDecl struct {
	Kind       MemberKind
	Name       string
	Slot       string // synthesized disambiguated slot; equals Name unless disambiguated
	Visibility Visibility
	Exposure   Exposure
	Doc        string
	Line       int

	// Field
	Type     *TypeRef
	Value    string
	ReadOnly bool

	// Method
	Params        []Param
	Return        *TypeRef
	Decorators    []string
	IsConstructor bool
	IsAsync       bool

	// Property accessors; Getter may be nil for an orphan setter.
	Getter *MemberDecl
	Setter *MemberDecl
}

// FunctionDecl is a top-level function.
type FunctionDecl struct {
	Name       string
	Slot       string
	Visibility Visibility
	Exposure   Exposure
	Doc        string
	Line       int
	Params     []Param
	Return     *TypeRef
	Decorators []string
	IsAsync    bool
}

// ClassDecl is a class with its ordered members. Base classes are kept as
// raw symbolic references; resolving them against other units is a
// downstream concern.
type ClassDecl struct {
	Name       string
	Slot       string
	Kind       ClassKind
	Visibility Visibility
	Doc        string
	Line       int
	Bases      []string
	Metaclass  string
	Decorators []string
	Members    []*MemberDecl
	Classes    []*ClassDecl // nested classes
}

// Member returns the member stored under the given slot, or nil.
func (c *ClassDecl) Member(slot string) *MemberDecl {
	for _, m := range c.Members {
		if m.Slot == slot {
			return m
		}
	}
	return nil
}

// Binding is a module-level name with an optional declared type. Values are
// carried as text and never evaluated.
type Binding struct {
	Name       string
	Type       *TypeRef
	Value      string
	Visibility Visibility
	Line       int
}

// Import is one import statement, with cimport forms already normalized to
// their Python spelling.
type Import struct {
	Statement string
	Line      int
}

// Module is one declaration unit. It is built once per source unit and
// treated as immutable afterwards.
type Module struct {
	Name      string
	Doc       string
	Imports   []Import
	Classes   []*ClassDecl
	Functions []*FunctionDecl
	Bindings  []*Binding
	Warnings  []Warning
}

// WarningKind distinguishes recoverable diagnostic categories.
type WarningKind int

const (
	ResolutionWarning WarningKind = iota
	StructuralWarning
)

func (k WarningKind) String() string {
	if k == StructuralWarning {
		return "structural"
	}
	return "resolution"
}

// Warning is a non-fatal diagnostic keyed by declaration location.
type Warning struct {
	Kind    WarningKind
	Line    int
	Column  int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", w.Line, w.Column, w.Kind, w.Message)
}

// ParseError is an unrecoverable syntax failure for one unit. Other units
// are unaffected.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}
