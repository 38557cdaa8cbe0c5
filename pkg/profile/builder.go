package profile

import (
	"fmt"
	"time"

	"github.com/jvmprof/jvmprof/pkg/jvm"
	"github.com/jvmprof/jvmprof/pkg/jvm/jvmsym"
)

const (
	// Leaf frames of a trace that are native dispatch trampolines are
	// skipped, up to this bound, so cost is attributed to the first
	// meaningful frame instead.
	maxSkippedNativeFrames = 5

	unknownMethodName = "Unknown method"
)

////////////////////////////////////////////////////////////////////////////////

// Builder aggregates raw stack traces into one deduplicated profile.
//
// Equal traces (frame for frame) accumulate into a single sample; distinct
// traces get distinct samples whose locations are interned through the
// builder's location table. A builder is bound to one collection epoch and
// one calling goroutine.
type Builder struct {
	profile      *Profile
	locations    *locationTable
	traces       traceTable
	resolver     jvm.Resolver
	native       jvm.NativeResolver
	samplingRate int64

	frozen *Profile
}

// NewBuilder assembles a profile with two value columns, count first and
// metric second. The sampling rate is the mean metric interval between two
// recorded events; it only matters for FinishUnsampled.
func NewBuilder(resolver jvm.Resolver, native jvm.NativeResolver, samplingRate int64, countType, metricType SampleType) *Builder {
	p := &Profile{
		SampleType: []*ValueType{
			{Type: countType.Kind, Unit: countType.Unit},
			{Type: metricType.Kind, Unit: metricType.Unit},
		},
		PeriodType: &ValueType{Type: metricType.Kind, Unit: metricType.Unit},
	}
	return &Builder{
		profile:      p,
		locations:    newLocationTable(p),
		traces:       make(traceTable),
		resolver:     resolver,
		native:       native,
		samplingRate: samplingRate,
	}
}

// NewHeapBuilder builds allocation profiles. The sampling rate is the mean
// number of allocated bytes between two sampled allocations.
func NewHeapBuilder(resolver jvm.Resolver, native jvm.NativeResolver, samplingRate int64) *Builder {
	return NewBuilder(resolver, native, samplingRate,
		SampleType{Kind: "alloc_objects", Unit: "count"},
		SampleType{Kind: "alloc_space", Unit: "bytes"},
	)
}

// NewCPUBuilder builds CPU profiles; the metric of each submitted trace is
// the sampling period it stands for, in nanoseconds.
func NewCPUBuilder(resolver jvm.Resolver, native jvm.NativeResolver, periodNanos int64) *Builder {
	return NewBuilder(resolver, native, periodNanos,
		SampleType{Kind: "samples", Unit: "count"},
		SampleType{Kind: "cpu", Unit: "nanoseconds"},
	)
}

// NewContentionBuilder builds monitor contention profiles.
func NewContentionBuilder(resolver jvm.Resolver, native jvm.NativeResolver, samplingRate int64) *Builder {
	return NewBuilder(resolver, native, samplingRate,
		SampleType{Kind: "contentions", Unit: "count"},
		SampleType{Kind: "delay", Unit: "microseconds"},
	)
}

// BuilderFactory creates builders of one profile kind.
type BuilderFactory func(resolver jvm.Resolver, native jvm.NativeResolver, samplingRate int64) *Builder

// FactoryForType maps a profile kind name to its builder constructor.
func FactoryForType(profileType string) (BuilderFactory, error) {
	switch profileType {
	case "cpu":
		return NewCPUBuilder, nil
	case "heap":
		return NewHeapBuilder, nil
	case "contention":
		return NewContentionBuilder, nil
	default:
		return nil, fmt.Errorf("unknown profile type %q", profileType)
	}
}

////////////////////////////////////////////////////////////////////////////////

func (b *Builder) SetStartTime(ts time.Time) *Builder {
	b.profile.TimeNanos = ts.UnixNano()
	return b
}

func (b *Builder) SetEndTime(ts time.Time) *Builder {
	b.profile.DurationNanos = ts.UnixNano() - b.profile.TimeNanos
	return b
}

func (b *Builder) GetStartTime() time.Time {
	return time.Unix(0, b.profile.TimeNanos)
}

////////////////////////////////////////////////////////////////////////////////

// AddTraces submits a batch of traces, each counted once.
func (b *Builder) AddTraces(traces []StackTrace) {
	for _, trace := range traces {
		b.addTrace(trace, 1)
	}
}

// AddTracesWithCounts submits a batch of pre-aggregated traces; counts[i]
// is the number of occurrences of traces[i].
func (b *Builder) AddTracesWithCounts(traces []StackTrace, counts []int64) {
	for i, trace := range traces {
		b.addTrace(trace, counts[i])
	}
}

// AddArtificialTrace records a synthetic single-frame sample, used for
// bookkeeping entries such as dropped or truncated stacks. Its metric value
// is count*samplingRate, the total the frames would have accounted for.
func (b *Builder) AddArtificialTrace(name string, count, samplingRate int64) {
	location := b.locations.locationFor(name, name, "", -1)

	sample := &Sample{
		Location: []*Location{location},
		Value:    []int64{count, count * samplingRate},
	}
	b.profile.Sample = append(b.profile.Sample, sample)
}

func (b *Builder) addTrace(trace StackTrace, count int64) {
	if sample, ok := b.traces.sample(trace.Trace); ok {
		sample.Value[countIndex] += count
		sample.Value[metricIndex] += trace.Metric
		return
	}

	sample := &Sample{Value: []int64{count, trace.Metric}}
	b.profile.Sample = append(b.profile.Sample, sample)
	b.traces.record(trace.Trace, sample)

	frames := trace.Trace.Frames

	var state stackState
	for _, frame := range frames[skipLeadingNativeFrames(frames):] {
		if frame.IsNative() {
			b.addNativeFrame(sample, frame, &state)
		} else {
			b.addJavaFrame(sample, frame, &state)
		}
	}
}

func (b *Builder) addJavaFrame(sample *Sample, frame jvm.Frame, state *stackState) {
	state.javaFrame()

	if frame.Method == 0 {
		b.appendUnknownMethod(sample)
		return
	}

	info, ok := b.resolver.Resolve(frame)
	if !ok {
		b.appendUnknownMethod(sample)
		return
	}

	signature := jvmsym.FixMethodParameters(info.Signature)
	fullName := jvmsym.SimplifyFunctionName(info.ClassName+"."+info.MethodName) + signature

	location := b.locations.locationFor(info.ClassName, fullName, info.FileName, info.LineNumber)
	sample.Location = append(sample.Location, location)
}

func (b *Builder) addNativeFrame(sample *Sample, frame jvm.Frame, state *stackState) {
	var name string
	if b.native != nil {
		name = b.native.ResolveNative(frame)
	}
	location := b.locations.nativeLocationFor(name, uint64(frame.Method))

	if state.nativeFrame(name) {
		return
	}
	sample.Location = append(sample.Location, location)
}

func (b *Builder) appendUnknownMethod(sample *Sample) {
	location := b.locations.locationFor("", unknownMethodName, "", 0)
	sample.Location = append(sample.Location, location)
}

func skipLeadingNativeFrames(frames []jvm.Frame) int {
	bound := min(maxSkippedNativeFrames, len(frames))
	for i := 0; i < bound; i++ {
		if !frames[i].IsNative() {
			return i
		}
	}
	return bound
}

////////////////////////////////////////////////////////////////////////////////

// Finish freezes and returns the profile with values as accumulated.
// Subsequent calls of either finisher return the same frozen profile.
func (b *Builder) Finish() *Profile {
	if b.frozen == nil {
		b.frozen = b.profile
	}
	return b.frozen
}

// FinishUnsampled rewrites every sample's values by the sampling correction
// ratio computed from that sample's own (count, metric) pair, then freezes.
// The correction applies at most once: whichever finisher runs first wins.
func (b *Builder) FinishUnsampled() *Profile {
	if b.frozen == nil {
		b.unsampleValues()
		b.frozen = b.profile
	}
	return b.frozen
}

func (b *Builder) unsampleValues() {
	for _, sample := range b.profile.Sample {
		count := sample.Value[countIndex]
		metric := sample.Value[metricIndex]
		ratio := SamplingRatio(b.samplingRate, count, metric)

		sample.Value[countIndex] = int64(float64(count) * ratio)
		sample.Value[metricIndex] = int64(float64(metric) * ratio)
	}
}
