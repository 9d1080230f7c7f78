package extract

import (
	"regexp"
	"strings"
)

// declTable carries per-line metadata recorded by the preprocessor: the
// class declaration kind and the member exposure tag for every rewritten
// declaration, keyed by 1-based physical line.
type declTable struct {
	classKinds map[int]ClassKind
	exposures  map[int]Exposure
	readonly   map[int]bool
	fields     map[int]bool // lines rewritten from typed attribute declarations
}

func newDeclTable() *declTable {
	return &declTable{
		classKinds: make(map[int]ClassKind),
		exposures:  make(map[int]Exposure),
		readonly:   make(map[int]bool),
		fields:     make(map[int]bool),
	}
}

func (t *declTable) classKind(line int) ClassKind {
	if k, ok := t.classKinds[line]; ok {
		return k
	}
	return ClassPlain
}

func (t *declTable) exposure(line int) Exposure {
	if e, ok := t.exposures[line]; ok {
		return e
	}
	return ExposurePlain
}

// preprocess rewrites the native declaration forms (cdef class, cpdef/cdef
// callables, typed attribute declarations) into grammar-clean Python so the
// tree-sitter Python grammar can structure them. The physical line count is
// preserved: a declaration always stays on the line it started on, so node
// positions reported by the parser line up with the original source.
func preprocess(source []byte) (string, *declTable) {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")
	text = expandLeadingTabs(text)
	text = stripComments(text)

	lines := joinLogicalLines(strings.Split(text, "\n"))
	table := newDeclTable()
	rw := &rewriter{lines: lines, table: table}
	rw.run()

	return strings.Join(rw.lines, "\n"), table
}

var leadingTabs = regexp.MustCompile(`(?m)^\t+`)

func expandLeadingTabs(text string) string {
	return leadingTabs.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat("    ", len(m))
	})
}

// stripComments removes # comments, honoring string literals so that quoted
// hash marks survive. Comments never contain newlines, so the line layout
// is untouched.
func stripComments(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	var st scanState
	i := 0
	for i < len(text) {
		c := text[i]
		if !st.inStr && c == '#' {
			for i < len(text) && text[i] != '\n' {
				i++
			}
			continue
		}
		start := i
		st.step(text, &i)
		out.WriteString(text[start:i])
	}
	return out.String()
}

// scanState tracks string-literal and bracket context across a scan.
type scanState struct {
	depth  int
	inStr  bool
	triple bool
	delim  byte
}

// step consumes one token (a full string delimiter, an escape pair, or a
// single byte) advancing *i and updating the state.
func (s *scanState) step(text string, i *int) {
	c := text[*i]
	if s.inStr {
		switch {
		case c == '\\' && *i+1 < len(text):
			*i += 2
		case c == s.delim && s.triple && strings.HasPrefix(text[*i:], strings.Repeat(string(s.delim), 3)):
			s.inStr = false
			*i += 3
		case c == s.delim && !s.triple:
			s.inStr = false
			*i++
		case c == '\n' && !s.triple:
			// Unterminated single-line string; let the parser flag it.
			s.inStr = false
			*i++
		default:
			*i++
		}
		return
	}
	switch c {
	case '\'', '"':
		s.inStr = true
		s.delim = c
		if strings.HasPrefix(text[*i:], strings.Repeat(string(c), 3)) {
			s.triple = true
			*i += 3
		} else {
			s.triple = false
			*i++
		}
	case '(', '[', '{':
		s.depth++
		*i++
	case ')', ']', '}':
		if s.depth > 0 {
			s.depth--
		}
		*i++
	default:
		*i++
	}
}

// scanLine advances the state over one line and reports whether the line
// ends with a continuation backslash outside any string.
func (s *scanState) scanLine(line string) bool {
	i := 0
	for i < len(line) {
		s.step(line, &i)
	}
	if s.inStr {
		return false
	}
	trimmed := strings.TrimRight(line, " \t")
	return strings.HasSuffix(trimmed, "\\")
}

// joinLogicalLines folds bracket and backslash continuations into the first
// physical line of each logical line, blanking the consumed lines so the
// total line count is unchanged. Triple-quoted strings pass through.
func joinLogicalLines(lines []string) []string {
	out := make([]string, len(lines))
	var st scanState

	i := 0
	for i < len(lines) {
		if st.inStr && st.triple {
			out[i] = lines[i]
			st.scanLine(lines[i])
			i++
			continue
		}
		start := i
		cur := lines[i]
		cont := st.scanLine(cur)
		for (st.depth > 0 || cont) && i+1 < len(lines) && !(st.inStr && st.triple) {
			i++
			next := lines[i]
			cont = st.scanLine(next)
			cur = strings.TrimSuffix(strings.TrimRight(cur, " \t"), "\\")
			cur = strings.TrimRight(cur, " \t") + " " + strings.TrimSpace(next)
			out[i] = ""
		}
		out[start] = cur
		i++
	}
	return out
}

// rewriter walks the joined lines applying the dialect rewrites.
type rewriter struct {
	lines []string
	table *declTable

	// active indented region being treated specially: a "cdef:" attribute
	// block (rewrite members) or a skipped block (extern, legacy property).
	blockIndent int
	blockMode   blockMode
	blockExpo   Exposure
}

type blockMode int

const (
	blockNone blockMode = iota
	blockAttrs
	blockSkip
)

var classDeclRe = regexp.MustCompile(`^(cdef|cpdef)\s+(?:api\s+)?class\s+(.+)$`)

func (r *rewriter) run() {
	for idx := range r.lines {
		line := r.lines[idx]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		ind := indentOf(line)

		if r.blockMode != blockNone {
			if ind > r.blockIndent {
				switch r.blockMode {
				case blockAttrs:
					r.lines[idx] = r.rewriteBlockAttr(idx, trimmed)
				case blockSkip:
					r.lines[idx] = ""
				}
				continue
			}
			r.blockMode = blockNone
		}

		r.lines[idx] = r.rewriteLine(idx, ind, trimmed, line)
	}
}

func (r *rewriter) rewriteLine(idx, ind int, trimmed, line string) string {
	lineNo := idx + 1
	pad := line[:len(line)-len(strings.TrimLeft(line, " "))]

	switch {
	case strings.HasPrefix(trimmed, "cimport "):
		return pad + "import " + strings.TrimPrefix(trimmed, "cimport ")
	case strings.HasPrefix(trimmed, "from ") && strings.Contains(trimmed, " cimport "):
		return pad + strings.Replace(trimmed, " cimport ", " import ", 1)
	case strings.HasPrefix(trimmed, "ctypedef ") ||
		strings.HasPrefix(trimmed, "DEF ") ||
		strings.HasPrefix(trimmed, "include "):
		return ""
	case strings.HasPrefix(trimmed, "cdef extern"):
		r.blockMode = blockSkip
		r.blockIndent = ind
		return ""
	case strings.HasPrefix(trimmed, "property ") && strings.HasSuffix(trimmed, ":"):
		// Legacy property blocks are not part of the supported surface.
		r.blockMode = blockSkip
		r.blockIndent = ind
		return ""
	}

	if (strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "async def ")) &&
		strings.HasSuffix(trimmed, ":") && strings.Contains(trimmed, "(") {
		// Plain defs may still carry C-typed parameters.
		return pad + rewriteDefParams(trimmed)
	}

	if m := classDeclRe.FindStringSubmatch(trimmed); m != nil {
		if m[1] == "cpdef" {
			r.table.classKinds[lineNo] = ClassNativeAPI
		} else {
			r.table.classKinds[lineNo] = ClassNative
		}
		return pad + "class " + m[2]
	}

	qualifier := ""
	rest := ""
	switch {
	case trimmed == "cdef:":
		r.blockMode = blockAttrs
		r.blockIndent = ind
		r.blockExpo = ExposureNativeInternal
		return ""
	case strings.HasPrefix(trimmed, "cdef "):
		qualifier, rest = "cdef", strings.TrimSpace(trimmed[len("cdef"):])
	case strings.HasPrefix(trimmed, "cpdef "):
		qualifier, rest = "cpdef", strings.TrimSpace(trimmed[len("cpdef"):])
	default:
		return line
	}

	if strings.HasSuffix(rest, ":") && strings.Contains(rest, "(") {
		expo := ExposureNativeInternal
		if qualifier == "cpdef" {
			expo = ExposureNativeCallable
		}
		r.table.exposures[lineNo] = expo
		return pad + rewriteNativeFunc(rest)
	}

	return pad + r.rewriteAttr(lineNo, qualifier, rest)
}

// rewriteBlockAttr rewrites one member of a "cdef:" block, dedenting it to
// the block's own level so it lands in the enclosing scope.
func (r *rewriter) rewriteBlockAttr(idx int, trimmed string) string {
	pad := strings.Repeat(" ", r.blockIndent)
	return pad + r.rewriteAttr(idx+1, "cdef", trimmed)
}

// rewriteAttr turns "public int rows" / "int _tmp = 0" / "int a, b" into
// annotated Python names, recording exposure per line.
func (r *rewriter) rewriteAttr(lineNo int, qualifier, rest string) string {
	expo := ExposureNativeInternal
	if qualifier == "cpdef" {
		expo = ExposureNativeCallable
	}
	readonly := false
	switch {
	case strings.HasPrefix(rest, "public "):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "public "))
		expo = ExposureNativeCallable
	case strings.HasPrefix(rest, "readonly "):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "readonly "))
		expo = ExposureNativeCallable
		readonly = true
	}

	decl, value := splitOnce(rest, '=')
	groups := splitTopLevel(decl, ',')
	if len(groups) == 0 {
		return ""
	}

	first := splitTopLevelFields(strings.TrimSpace(groups[0]))
	if len(first) < 2 {
		// Not a declaration we can model; drop the line.
		return ""
	}
	name := cleanDeclName(first[len(first)-1])
	ctype := cleanCType(first[:len(first)-1])

	var stmts []string
	emit := func(n string) {
		if ctype != "" {
			stmts = append(stmts, n+": "+ctype)
		} else {
			stmts = append(stmts, n)
		}
	}
	emit(name)
	for _, g := range groups[1:] {
		emit(cleanDeclName(strings.TrimSpace(g)))
	}

	out := strings.Join(stmts, "; ")
	if value != "" && len(stmts) == 1 {
		out += " = " + strings.TrimSpace(value)
	}

	r.table.exposures[lineNo] = expo
	r.table.readonly[lineNo] = readonly
	r.table.fields[lineNo] = true
	return out
}

var funcModifiers = map[string]bool{
	"inline": true, "api": true, "nogil": true, "noexcept": true,
}

// rewriteNativeFunc turns "int add(int a, int b) except -1:" into
// "def add(a: int, b: int) -> int:".
func rewriteNativeFunc(rest string) string {
	body := strings.TrimSuffix(rest, ":")

	open := topLevelIndex(body, '(')
	if open < 0 {
		return "def " + body + ":"
	}
	head := strings.TrimSpace(body[:open])
	close_ := matchingParen(body, open)
	if close_ < 0 {
		close_ = len(body) - 1
	}
	params := body[open+1 : close_]

	headFields := splitTopLevelFields(head)
	for len(headFields) > 0 && funcModifiers[headFields[0]] {
		headFields = headFields[1:]
	}
	if len(headFields) == 0 {
		return "def " + body + ":"
	}
	name := headFields[len(headFields)-1]
	ret := cleanCType(headFields[:len(headFields)-1])

	var rewritten []string
	for _, p := range splitTopLevel(params, ',') {
		rewritten = append(rewritten, rewriteParam(strings.TrimSpace(p)))
	}

	out := "def " + name + "(" + strings.Join(rewritten, ", ") + ")"
	if ret != "" && ret != "void" {
		out += " -> " + ret
	}
	return out + ":"
}

// rewriteDefParams rewrites the parameter list of a plain def, which may
// still carry C-typed parameters, leaving the head and any return
// annotation alone.
func rewriteDefParams(trimmed string) string {
	open := topLevelIndex(trimmed, '(')
	if open < 0 {
		return trimmed
	}
	close_ := matchingParen(trimmed, open)
	if close_ < 0 {
		return trimmed
	}
	var rewritten []string
	for _, p := range splitTopLevel(trimmed[open+1:close_], ',') {
		rewritten = append(rewritten, rewriteParam(strings.TrimSpace(p)))
	}
	return trimmed[:open+1] + strings.Join(rewritten, ", ") + trimmed[close_:]
}

// rewriteParam converts a C-typed parameter ("double f", "int n = 0") into
// annotated Python form. Already-annotated and splat parameters pass
// through.
func rewriteParam(p string) string {
	if p == "" || strings.HasPrefix(p, "*") {
		return p
	}
	decl, def := splitOnce(p, '=')
	decl = strings.TrimSpace(decl)
	def = strings.TrimSpace(def)

	decl = strings.TrimSuffix(decl, " not None")
	decl = strings.TrimSuffix(decl, " or None")

	if topLevelIndex(decl, ':') >= 0 {
		return reassemble(decl, def)
	}

	fields := splitTopLevelFields(decl)
	if len(fields) < 2 {
		return reassemble(decl, def)
	}
	name := cleanDeclName(fields[len(fields)-1])
	ctype := cleanCType(fields[:len(fields)-1])
	if ctype == "" {
		return reassemble(name, def)
	}
	return reassemble(name+": "+ctype, def)
}

func reassemble(decl, def string) string {
	if def == "" {
		return decl
	}
	return decl + " = " + def
}

var cTypeModifiers = map[string]bool{
	"const": true, "volatile": true, "unsigned": true, "signed": true,
	"struct": true, "enum": true,
}

// cleanCType reduces a C type token run to a single annotation-safe token.
// Qualifier words are dropped and pointer/reference markers stripped;
// multi-word arithmetic types keep their final keyword.
func cleanCType(fields []string) string {
	var kept []string
	for _, f := range fields {
		f = strings.Trim(f, "*&")
		if f == "" || cTypeModifiers[f] {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return ""
	}
	return kept[len(kept)-1]
}

func cleanDeclName(name string) string {
	return strings.TrimLeft(strings.TrimSpace(name), "*&")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// splitOnce splits on the first top-level occurrence of sep, returning
// ("", "") appropriately when absent.
func splitOnce(s string, sep byte) (string, string) {
	idx := topLevelIndex(s, sep)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// topLevelIndex returns the index of the first occurrence of c outside
// brackets and strings, or -1.
func topLevelIndex(s string, c byte) int {
	var st scanState
	i := 0
	for i < len(s) {
		if !st.inStr && st.depth == 0 && s[i] == c {
			return i
		}
		st.step(s, &i)
	}
	return -1
}

// matchingParen returns the index of the parenthesis closing the one at
// open, or -1.
func matchingParen(s string, open int) int {
	var st scanState
	i := open
	for i < len(s) {
		before := st.depth
		st.step(s, &i)
		if st.depth < before && st.depth == 0 {
			return i - 1
		}
	}
	return -1
}

// splitTopLevel splits on sep at bracket depth zero.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var st scanState
	last := 0
	i := 0
	for i < len(s) {
		if !st.inStr && st.depth == 0 && s[i] == sep {
			parts = append(parts, s[last:i])
			i++
			last = i
			continue
		}
		st.step(s, &i)
	}
	if strings.TrimSpace(s[last:]) != "" || len(parts) > 0 {
		parts = append(parts, s[last:])
	}
	return parts
}

// splitTopLevelFields splits on whitespace at bracket depth zero, so
// "vector[double, int] xs" yields two fields.
func splitTopLevelFields(s string) []string {
	var fields []string
	var st scanState
	start := -1
	i := 0
	for i < len(s) {
		if !st.inStr && st.depth == 0 && (s[i] == ' ' || s[i] == '\t') {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			i++
			continue
		}
		if start < 0 {
			start = i
		}
		st.step(s, &i)
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
