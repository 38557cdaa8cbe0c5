package jvmsym

import "strings"

// Parse errors are embedded inline in the pretty-printed output instead of
// being returned: one malformed descriptor must never discard a whole trace.
const (
	errEndOfBuffer  = "<error: end of buffer reached>"
	errEndOfString  = "<error: end of string reached>"
	errUnknownType  = "<error: unknown type>"
	errNoCloseParen = " <Method Signature Error: no ')'>"
)

// ParseFieldType pretty-prints the JVM type descriptor at desc[*pos] and
// advances the cursor past it. The cursor advances even on malformed input
// so that sibling parses can continue deterministically.
func ParseFieldType(desc string, pos *int) string {
	if *pos >= len(desc) {
		return errEndOfBuffer
	}

	tag := desc[*pos]
	*pos++

	switch tag {
	case 'B':
		return "byte"
	case 'C':
		return "char"
	case 'D':
		return "double"
	case 'F':
		return "float"
	case 'I':
		return "int"
	case 'J':
		return "long"
	case 'S':
		return "short"
	case 'Z':
		return "boolean"
	case 'V':
		return "void"
	case 'L':
		// Slash-separated binary name terminated by a semicolon.
		end := strings.IndexByte(desc[*pos:], ';')
		if end < 0 {
			*pos = len(desc)
			return errEndOfString
		}
		name := desc[*pos : *pos+end]
		*pos += end + 1
		return name
	case '[':
		return ParseFieldType(desc, pos) + "[]"
	case '(':
		// A method descriptor passed where a field type was expected.
		// Back up so the method parser sees the opening parenthesis.
		*pos--
		return parseMethodSignatureWithReturn(desc, pos)
	default:
		return errUnknownType
	}
}

func atSignatureEnd(desc string, pos int) bool {
	return pos >= len(desc) || desc[pos] == ')'
}

// ParseMethodSignature pretty-prints the parameter list of the method
// descriptor at desc[*pos]. The result looks like "(int, java.lang.String)";
// the return type is not consumed. A missing opening parenthesis yields an
// empty string without advancing the cursor.
func ParseMethodSignature(desc string, pos *int) string {
	if *pos >= len(desc) || desc[*pos] != '(' {
		return ""
	}
	*pos++

	var buf strings.Builder
	buf.WriteByte('(')
	for !atSignatureEnd(desc, *pos) {
		buf.WriteString(ParseFieldType(desc, pos))
		if !atSignatureEnd(desc, *pos) {
			buf.WriteString(", ")
		}
	}

	if *pos < len(desc) {
		*pos++
		buf.WriteByte(')')
	} else {
		buf.WriteString(errNoCloseParen)
	}
	return buf.String()
}

// parseMethodSignatureWithReturn produces "<return> (<params>)". The return
// type is parsed only if the parameter list parsed cleanly.
func parseMethodSignatureWithReturn(desc string, pos *int) string {
	args := ParseMethodSignature(desc, pos)
	if args == "" {
		return ""
	}
	if args[len(args)-1] != ')' {
		return args
	}
	return ParseFieldType(desc, pos) + " " + args
}

// FixPath rewrites a slash-separated binary name into dotted form.
func FixPath(s string) string {
	return strings.ReplaceAll(s, "/", ".")
}

// PrettyPrintSignature pretty-prints a whole field or method descriptor,
// with binary names in dotted form.
func PrettyPrintSignature(desc string) string {
	pos := 0
	return FixPath(ParseFieldType(desc, &pos))
}

// FixMethodParameters turns a raw method descriptor into its pretty-printed
// parameter list, e.g. "(ILjava/lang/String;)V" into
// "(int, java.lang.String)". Strings not starting with an opening
// parenthesis are returned unchanged.
func FixMethodParameters(signature string) string {
	if signature == "" || signature[0] != '(' {
		return signature
	}

	fixed := FixPath(signature)
	pos := 0
	return ParseMethodSignature(fixed, &pos)
}
