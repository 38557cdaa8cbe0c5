package collapsed

import (
	"fmt"
	"strings"

	"github.com/jvmprof/jvmprof/pkg/profile"
)

// FromProfile flattens an aggregated profile into collapsed stacks using
// valueIndex to pick the sample value column. Stacks resolving to the same
// frame names are merged; the first occurrence fixes the output position.
func FromProfile(prof *profile.Profile, valueIndex int) (*Profile, error) {
	if valueIndex < 0 || valueIndex >= len(prof.SampleType) {
		return nil, fmt.Errorf("collapsed: no sample value at index %d", valueIndex)
	}

	res := &Profile{
		Samples: make([]Sample, 0, len(prof.Sample)),
	}
	index := make(map[string]int)

	for _, sample := range prof.Sample {
		if len(sample.Location) == 0 {
			continue
		}

		// Profile samples are leaf-first, collapsed stacks are root-first.
		stack := make([]string, 0, len(sample.Location))
		for i := len(sample.Location) - 1; i >= 0; i-- {
			stack = append(stack, frameName(sample.Location[i]))
		}

		key := strings.Join(stack, ";")
		if at, ok := index[key]; ok {
			res.Samples[at].Value += sample.Value[valueIndex]
			continue
		}
		index[key] = len(res.Samples)
		res.Samples = append(res.Samples, Sample{
			Stack: stack,
			Value: sample.Value[valueIndex],
		})
	}

	return res, nil
}

func frameName(loc *profile.Location) string {
	if len(loc.Line) > 0 && loc.Line[0].Function != nil {
		return loc.Line[0].Function.Name
	}
	if loc.Address != 0 {
		return fmt.Sprintf("%#x", loc.Address)
	}
	return "?"
}
