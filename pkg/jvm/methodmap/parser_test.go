package methodmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvmprof/jvmprof/pkg/jvm"
)

func mustParseString(t *testing.T, data string) *Map {
	t.Helper()

	reader := bytes.NewBuffer([]byte(data))
	m, err := Parse(reader)
	require.NoError(t, err, "unexpected error when parsing data %q", data)
	return m
}

func TestSimple(t *testing.T) {
	data := `1a com.example.Foo bar (I)V 10 Foo.java
2b com.example.Foo baz ()V 20 Foo.java`
	m := mustParseString(t, data)
	require.Equal(t, 2, m.Size())

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	require.True(t, ok)
	assert.Equal(t, jvm.FrameInfo{
		FileName:   "Foo.java",
		ClassName:  "com.example.Foo",
		MethodName: "bar",
		Signature:  "(I)V",
		LineNumber: 10,
	}, info)

	_, ok = m.Resolve(jvm.Frame{Method: 0x3c})
	assert.False(t, ok)
}

func TestHexPrefix(t *testing.T) {
	// The sampler writes 0x-prefixed ids, hand-written maps often omit
	// the prefix. We support both cases.
	data := `0x1a com.example.Foo bar (I)V 10 Foo.java
2b com.example.Foo baz ()V 20 Foo.java`
	m := mustParseString(t, data)

	_, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	assert.True(t, ok)
	_, ok = m.Resolve(jvm.Frame{Method: 0x2b})
	assert.True(t, ok)
}

func TestSlashedClassNames(t *testing.T) {
	data := `1a com/example/Foo bar (I)V 10 Foo.java`
	m := mustParseString(t, data)

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	require.True(t, ok)
	assert.Equal(t, "com.example.Foo", info.ClassName)
}

func TestPlaceholders(t *testing.T) {
	data := `1a - stub_routine - -1 -`
	m := mustParseString(t, data)

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	require.True(t, ok)
	assert.Equal(t, jvm.FrameInfo{
		MethodName: "stub_routine",
		LineNumber: -1,
	}, info)
}

func TestWhiteSpaceInFileNames(t *testing.T) {
	data := `1a com.example.Foo bar (I)V 10 my project/Foo.java`
	m := mustParseString(t, data)

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	require.True(t, ok)
	assert.Equal(t, "my project/Foo.java", info.FileName)
}

func TestCommentsAndBlankLines(t *testing.T) {
	data := `# method map for pid 4242

1a com.example.Foo bar (I)V 10 Foo.java
`
	m := mustParseString(t, data)
	assert.Equal(t, 1, m.Size())
}

func TestDuplicateIDsLastWins(t *testing.T) {
	data := `1a com.example.Foo bar (I)V 10 Foo.java
1a com.example.Foo bar (I)V 30 Foo.java`
	m := mustParseString(t, data)
	require.Equal(t, 1, m.Size())

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a})
	require.True(t, ok)
	assert.Equal(t, int64(30), info.LineNumber)
}

func TestMalformedLines(t *testing.T) {
	for i, data := range []string{
		`1a com.example.Foo bar (I)V`,
		`zz com.example.Foo bar (I)V 10`,
		`1a com.example.Foo bar (I)V ten`,
	} {
		_, err := Parse(bytes.NewBufferString(data))
		assert.ErrorContains(t, err, "line 1", "case %d", i)
	}
}

func TestLineMarkerWinsOverDeclaredLine(t *testing.T) {
	data := `1a com.example.Foo bar (I)V 10 Foo.java`
	m := mustParseString(t, data)

	info, ok := m.Resolve(jvm.Frame{Method: 0x1a, Line: 17})
	require.True(t, ok)
	assert.Equal(t, int64(17), info.LineNumber)

	info, ok = m.Resolve(jvm.Frame{Method: 0x1a, Line: jvm.LineCompiled})
	require.True(t, ok)
	assert.Equal(t, int64(10), info.LineNumber)
}

func TestResolveNative(t *testing.T) {
	data := `1a - stub_routine - -1
2b com.example.Foo bar (I)V 10 Foo.java`
	m := mustParseString(t, data)

	assert.Equal(t, "stub_routine", m.ResolveNative(jvm.Frame{Method: 0x1a}))
	assert.Equal(t, "com.example.Foo.bar", m.ResolveNative(jvm.Frame{Method: 0x2b}))
	assert.Equal(t, "", m.ResolveNative(jvm.Frame{Method: 0x3c}))
}

func TestEmptyMap(t *testing.T) {
	m := Empty()
	assert.Equal(t, 0, m.Size())

	_, ok := m.Resolve(jvm.Frame{Method: 1})
	assert.False(t, ok)
	assert.Equal(t, "", m.ResolveNative(jvm.Frame{Method: 1}))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "methods.map")
	require.NoError(t, os.WriteFile(path, []byte("1a com.example.Foo bar (I)V 10 Foo.java\n"), 0o644))

	m, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.map"))
	assert.Error(t, err)
}
