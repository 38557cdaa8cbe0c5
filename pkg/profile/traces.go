package profile

import (
	"encoding/binary"

	"github.com/jvmprof/jvmprof/pkg/jvm"
)

// traceKey is the raw identity of a stack trace: the (method, line) pair of
// every frame encoded in frame order, and nothing else. Keying samples by
// raw frames rather than resolved names keeps trace merging independent of
// symbol resolution, so two equal traces share a sample even when resolution
// is expensive or would map different method ids to the same display name.
type traceKey string

func makeTraceKey(trace jvm.Trace) traceKey {
	buf := make([]byte, 0, 12*len(trace.Frames))
	for _, frame := range trace.Frames {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(frame.Method))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(frame.Line))
	}
	return traceKey(buf)
}

type traceTable map[traceKey]*Sample

func (t traceTable) sample(trace jvm.Trace) (*Sample, bool) {
	s, ok := t[makeTraceKey(trace)]
	return s, ok
}

func (t traceTable) record(trace jvm.Trace, sample *Sample) {
	t[makeTraceKey(trace)] = sample
}
