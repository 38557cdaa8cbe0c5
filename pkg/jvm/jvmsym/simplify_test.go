package jvmsym

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplifyDynamicClassName(t *testing.T) {
	for i, test := range []struct {
		name     string
		expected string
	}{
		{"Foo$$FastClassByCGLIB$$fd6bdf6d.invoke", "Foo$$FastClassByCGLIB$$.invoke"},
		{"Foo$$EnhancerByCGLIB$$1234abcd.bar", "Foo$$EnhancerByCGLIB$$.bar"},
		{"Foo$$a1$$b2.run", "Foo$$$$.run"},
		{"plain.Name.method", "plain.Name.method"},
		{"Foo$$fd6bdf6d", "Foo$$"},
		{"Foo$$", "Foo$$"},
		{"Foo$$XYZ.run", "Foo$$XYZ.run"},
	} {
		t.Run(fmt.Sprintf("dynamic/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, simplifyDynamicClassName(test.name))
		})
	}
}

func TestSimplifyLambdaName(t *testing.T) {
	for i, test := range []struct {
		name     string
		expected string
	}{
		// The instance counter after the dot is erased, the ordinal id kept.
		{"com.google.Something$$Lambda$197.1849072452.run", "com.google.Something$$Lambda$197..run"},
		{"Foo$$Lambda$1.23", "Foo$$Lambda$1."},
		// Names without the exact digits-dot-digits pattern stay untouched.
		{"Foo$$Lambda$.run", "Foo$$Lambda$.run"},
		{"Foo$$Lambda$197.run", "Foo$$Lambda$197.run"},
		{"Foo$$Lambda$197.", "Foo$$Lambda$197."},
		{"Foo$$Lambda$197", "Foo$$Lambda$197"},
		{"Foo.bar", "Foo.bar"},
	} {
		t.Run(fmt.Sprintf("lambda/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, simplifyLambdaName(test.name))
		})
	}
}

func TestSimplifyReflectionMethodName(t *testing.T) {
	for i, test := range []struct {
		name     string
		expected string
	}{
		{"sun.reflect.GeneratedMethodAccessor1234.invoke", "sun.reflect.GeneratedMethodAccessor.invoke"},
		{"sun.reflect.GeneratedConstructorAccessor42.newInstance", "sun.reflect.GeneratedConstructorAccessor.newInstance"},
		{"sun.reflect.GeneratedSerializationConstructorAccessor7.newInstance", "sun.reflect.GeneratedSerializationConstructorAccessor.newInstance"},
		{"sun.reflect.GeneratedMethodAccessor1234", "sun.reflect.GeneratedMethodAccessor"},
		{"com.example.Ordinary.method", "com.example.Ordinary.method"},
	} {
		t.Run(fmt.Sprintf("reflection/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, simplifyReflectionMethodName(test.name))
		})
	}
}

func TestSimplifyFunctionName(t *testing.T) {
	for i, test := range []struct {
		name     string
		expected string
	}{
		{"Foo$$FastClassByCGLIB$$fd6bdf6d.invoke", "Foo$$FastClassByCGLIB$$.invoke"},
		{"com.google.Something$$Lambda$197.1849072452.run", "com.google.Something$$Lambda$197..run"},
		{"sun.reflect.GeneratedMethodAccessor1234.invoke", "sun.reflect.GeneratedMethodAccessor.invoke"},
		{"untouched.Class.method", "untouched.Class.method"},
		{"", ""},
	} {
		t.Run(fmt.Sprintf("simplify/%d", i), func(t *testing.T) {
			assert.Equal(t, test.expected, SimplifyFunctionName(test.name))
		})
	}
}

func TestSimplifyFunctionNameIdempotent(t *testing.T) {
	names := []string{
		"Foo$$FastClassByCGLIB$$fd6bdf6d.invoke",
		"com.google.Something$$Lambda$197.1849072452.run",
		"sun.reflect.GeneratedMethodAccessor1234.invoke",
		"Foo$$a1$$b2.run",
		"Foo$$Lambda$1.23",
		"plain.Name.method",
		"",
	}
	for _, name := range names {
		once := SimplifyFunctionName(name)
		require.Equal(t, once, SimplifyFunctionName(once), "not idempotent on %q", name)
	}
}
