package jvm

// MethodID is an opaque token identifying either a JVM method or, for native
// frames, an instruction address. Zero means the frame could not be resolved.
type MethodID uint64

// Line marker sentinels, following the HPROF convention:
// a positive value is a source line, negative values are special.
const (
	LineUnknown  int32 = -1
	LineCompiled int32 = -2
	LineNative   int32 = -3
)

// Frame is one entry of a raw call stack as delivered by the sampler.
type Frame struct {
	Method MethodID
	Line   int32
}

func (f Frame) IsNative() bool {
	return f.Line == LineNative
}

// Trace is an immutable raw stack trace, leaf frame first.
type Trace struct {
	Frames []Frame
}

// FrameInfo is the symbol information for one resolved Java frame.
// Unknown fields are left empty.
type FrameInfo struct {
	FileName   string
	ClassName  string
	MethodName string
	Signature  string
	LineNumber int64
}

// Resolver maps a raw frame to its symbol information. Resolution must be
// prompt and synchronous; the profile builder calls it inline.
type Resolver interface {
	Resolve(frame Frame) (FrameInfo, bool)
}

// NativeResolver names native frames. An empty string means the frame
// is unknown.
type NativeResolver interface {
	ResolveNative(frame Frame) string
}
