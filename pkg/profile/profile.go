// Package profile assembles deduplicated pprof profiles out of raw JVM
// stack samples. One Builder owns one profile for one collection epoch;
// it is not safe for concurrent use, callers run one builder per worker.
package profile

import (
	gprofile "github.com/google/pprof/profile"

	"github.com/jvmprof/jvmprof/pkg/jvm"
)

type (
	Profile   = gprofile.Profile
	Sample    = gprofile.Sample
	ValueType = gprofile.ValueType
	Location  = gprofile.Location
	Function  = gprofile.Function
	Line      = gprofile.Line
)

////////////////////////////////////////////////////////////////////////////////

// SampleType describes one value column of a profile.
type SampleType struct {
	Kind string
	Unit string
}

func (s *SampleType) String() string {
	return s.Kind + "." + s.Unit
}

// Every sample carries exactly two values, in this order.
const (
	countIndex  = 0
	metricIndex = 1
)

////////////////////////////////////////////////////////////////////////////////

// StackTrace is one raw stack trace together with the metric value
// attributed to it (bytes allocated, nanoseconds spent, and so on).
type StackTrace struct {
	Trace  jvm.Trace
	Metric int64
}
