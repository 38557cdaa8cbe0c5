// Package jvmsym makes JVM symbol names and type descriptors human-readable.
//
// Method names produced by bytecode generators (CGLIB proxies, lambdas,
// reflection stubs) embed per-instance counters and hashes. The simplifiers
// here strip those volatile parts so that repeated samples of the same
// logical method collapse into one profile entry. The descriptor parser
// pretty-prints compact JVM type signatures such as "(ILjava/lang/String;)V".
package jvmsym

import "strings"

const (
	dynamicClassMarker = "$$"
	lambdaMarker       = "$$Lambda$"

	hexDigits = "0123456789abcdef"
	digits    = "0123456789"
)

// Reflection stub name prefixes, see generateName() in
// sun/reflect/MethodAccessorGenerator.java.
var reflectionMarkers = []string{
	"sun.reflect.GeneratedConstructorAccessor",
	"sun.reflect.GeneratedMethodAccessor",
	"sun.reflect.GeneratedSerializationConstructorAccessor",
}

// SimplifyFunctionName normalizes a generated method name. It is idempotent:
// an already-normalized name passes through unchanged.
func SimplifyFunctionName(name string) string {
	return simplifyReflectionMethodName(simplifyLambdaName(simplifyDynamicClassName(name)))
}

// simplifySuffixedName removes, after every occurrence of trigger, the
// maximal run of suffixChars that immediately follows it. Occurrences are
// handled left to right, scanning forward from the end of the previous match.
func simplifySuffixedName(name, trigger, suffixChars string) string {
	first := 0
	for {
		idx := strings.Index(name[first:], trigger)
		if idx < 0 {
			return name
		}
		first += idx + len(trigger)

		last := first
		for last < len(name) && strings.IndexByte(suffixChars, name[last]) >= 0 {
			last++
		}
		if last == len(name) {
			return name[:first]
		}
		name = name[:first] + name[last:]
	}
}

// simplifyDynamicClassName collapses generated proxy class names that differ
// only by a hash suffix, e.g. Foo$$FastClassByCGLIB$$fd6bdf6d.invoke.
func simplifyDynamicClassName(name string) string {
	return simplifySuffixedName(name, dynamicClassMarker, hexDigits)
}

// simplifyLambdaName erases the instance counter from a lambda method name,
// keeping the lambda's ordinal id:
// Something$$Lambda$197.1849072452.run becomes Something$$Lambda$197..run.
// Only a single marker occurrence is handled, and only when it is followed
// by the exact digits-dot-digits pattern; anything else is left untouched.
func simplifyLambdaName(name string) string {
	first := strings.Index(name, lambdaMarker)
	if first < 0 {
		return name
	}
	first += len(lambdaMarker)
	if first >= len(name) || !isDigit(name[first]) {
		return name
	}

	last := first
	for last < len(name) && isDigit(name[last]) {
		last++
	}
	if last >= len(name) || name[last] != '.' {
		return name
	}
	last++
	if last >= len(name) || !isDigit(name[last]) {
		return name
	}

	counter := last
	for last < len(name) && isDigit(name[last]) {
		last++
	}
	return name[:counter] + name[last:]
}

// simplifyReflectionMethodName strips the trailing counter from runtime
// reflection stub names, independently for each known prefix.
func simplifyReflectionMethodName(name string) string {
	for _, marker := range reflectionMarkers {
		name = simplifySuffixedName(name, marker, digits)
	}
	return name
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
