package jvmsym

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldType(t *testing.T) {
	for i, test := range []struct {
		desc     string
		expected string
		pos      int
	}{
		{"B", "byte", 1},
		{"C", "char", 1},
		{"D", "double", 1},
		{"F", "float", 1},
		{"I", "int", 1},
		{"J", "long", 1},
		{"S", "short", 1},
		{"Z", "boolean", 1},
		{"V", "void", 1},
		{"Ljava/lang/String;", "java/lang/String", 18},
		{"[I", "int[]", 2},
		{"[[I", "int[][]", 3},
		{"[Ljava/lang/String;", "java/lang/String[]", 19},
		// The cursor stops after the consumed descriptor.
		{"IJ", "int", 1},
	} {
		t.Run(fmt.Sprintf("field/%d", i), func(t *testing.T) {
			pos := 0
			assert.Equal(t, test.expected, ParseFieldType(test.desc, &pos))
			assert.Equal(t, test.pos, pos)
		})
	}
}

func TestParseFieldTypeErrors(t *testing.T) {
	for i, test := range []struct {
		desc     string
		expected string
		pos      int
	}{
		{"", "<error: end of buffer reached>", 0},
		{"Ljava/lang/String", "<error: end of string reached>", 17},
		{"Q", "<error: unknown type>", 1},
		{"[", "<error: end of buffer reached>[]", 1},
		{"[Q", "<error: unknown type>[]", 2},
	} {
		t.Run(fmt.Sprintf("fielderr/%d", i), func(t *testing.T) {
			pos := 0
			assert.Equal(t, test.expected, ParseFieldType(test.desc, &pos))
			assert.Equal(t, test.pos, pos)
		})
	}
}

func TestParseFieldTypeAdvancesCursor(t *testing.T) {
	// Sibling parses continue from where the previous one stopped,
	// even after an error.
	desc := "IQJ"
	pos := 0
	require.Equal(t, "int", ParseFieldType(desc, &pos))
	require.Equal(t, "<error: unknown type>", ParseFieldType(desc, &pos))
	require.Equal(t, "long", ParseFieldType(desc, &pos))
	require.Equal(t, 3, pos)
}

func TestParseMethodSignature(t *testing.T) {
	for i, test := range []struct {
		desc     string
		expected string
		pos      int
	}{
		{"()V", "()", 2},
		{"(I)V", "(int)", 3},
		{"(ILjava/lang/String;)V", "(int, java/lang/String)", 21},
		{"(BZ[I)J", "(byte, boolean, int[])", 6},
		// Exhaustion without a closing parenthesis embeds an error marker.
		{"(I", "(int <Method Signature Error: no ')'>", 2},
		{"(", "( <Method Signature Error: no ')'>", 1},
		// Not a method descriptor at all.
		{"I", "", 0},
		{"", "", 0},
	} {
		t.Run(fmt.Sprintf("method/%d", i), func(t *testing.T) {
			pos := 0
			assert.Equal(t, test.expected, ParseMethodSignature(test.desc, &pos))
			assert.Equal(t, test.pos, pos)
		})
	}
}

func TestPrettyPrintSignature(t *testing.T) {
	for i, test := range []struct {
		desc     string
		expected string
	}{
		{"I", "int"},
		{"[[I", "int[][]"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"(ILjava/lang/String;)V", "void (int, java.lang.String)"},
		{"()[Ljava/util/Map;", "java.util.Map[] ()"},
		{"(DD)D", "double (double, double)"},
	} {
		t.Run(fmt.Sprintf("pretty/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, PrettyPrintSignature(test.desc))
		})
	}
}

func TestFixMethodParameters(t *testing.T) {
	for i, test := range []struct {
		signature string
		expected  string
	}{
		{"(ILjava/lang/String;)V", "(int, java.lang.String)"},
		{"()V", "()"},
		{"([B[B)Z", "(byte[], byte[])"},
		// Anything not starting with a parenthesis passes through.
		{"I", "I"},
		{"", ""},
		{"java/lang/String", "java/lang/String"},
	} {
		t.Run(fmt.Sprintf("fix/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, FixMethodParameters(test.signature))
		})
	}
}

func TestFixPath(t *testing.T) {
	assert.Equal(t, "java.lang.String", FixPath("java/lang/String"))
	assert.Equal(t, "noslashes", FixPath("noslashes"))
}
