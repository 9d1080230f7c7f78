package extract

import "strings"

// Visibility rules, in priority order: a native-internal declaration is
// Internal regardless of name; a single-leading-underscore name that is not
// a reserved dunder is Internal; everything else is Public. Classification
// is purely name and tag based.
func classify(name string, exposure Exposure) Visibility {
	if exposure == ExposureNativeInternal {
		return Internal
	}
	if strings.HasPrefix(name, "_") && !isDunder(name) {
		return Internal
	}
	return Public
}

// isDunder reports whether a name matches the reserved __x__ pattern.
func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// isConstructor reports whether a method name is an initializer. Both the
// Python and the extension-type spellings count; the member is always kept
// in the model so renderers can document the signature.
func isConstructor(name string) bool {
	return name == "__init__" || name == "__cinit__" || name == "__new__"
}
