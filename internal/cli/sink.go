package cli

import (
	"bytes"
	"fmt"

	"github.com/jvmprof/jvmprof/pkg/atomicfs"
	"github.com/jvmprof/jvmprof/pkg/flamegraph/collapsed"
	"github.com/jvmprof/jvmprof/pkg/profile"
)

// writeProfile publishes prof at path, either as a raw pprof protobuf or as
// collapsed stacks of the metric column. The file appears atomically.
func writeProfile(prof *profile.Profile, path string, collapsedFormat bool) (int, error) {
	data, err := marshalProfile(prof, collapsedFormat)
	if err != nil {
		return 0, err
	}

	if err := atomicfs.WriteFile(path, data); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(data), nil
}

func marshalProfile(prof *profile.Profile, collapsedFormat bool) ([]byte, error) {
	if collapsedFormat {
		flat, err := collapsed.FromProfile(prof, len(prof.SampleType)-1)
		if err != nil {
			return nil, err
		}
		return collapsed.Marshal(flat)
	}

	var buf bytes.Buffer
	if err := prof.WriteUncompressed(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize profile: %w", err)
	}
	return buf.Bytes(), nil
}
