package agent

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/jvmprof/jvmprof/pkg/config"
	"github.com/jvmprof/jvmprof/pkg/jvm/methodmap"
	"github.com/jvmprof/jvmprof/pkg/profile"
	"github.com/jvmprof/jvmprof/pkg/storage/client"
	"github.com/jvmprof/jvmprof/pkg/tracedump"
)

// multiBuilder aggregates one profile per observed process. Builders and
// their method maps live for one egress epoch; RestartProfiles drops them,
// so the next epoch picks up freshly written method maps.
type multiBuilder struct {
	logger  *zap.Logger
	conf    *config.AgentConfig
	factory profile.BuilderFactory
	now     func() time.Time

	builders         *DefaultMap[uint32, profile.Builder]
	profileStartTime time.Time
	epoch            uint64
}

func newMultiBuilder(logger *zap.Logger, conf *config.AgentConfig, now func() time.Time) (*multiBuilder, error) {
	factory, err := profile.FactoryForType(conf.ProfileType)
	if err != nil {
		return nil, err
	}

	b := &multiBuilder{
		logger:  logger,
		conf:    conf,
		factory: factory,
		now:     now,
	}
	b.builders = NewDefaultMap[uint32, profile.Builder](b.newProcessBuilder, nil)
	b.startNewProfiles()

	return b, nil
}

func (b *multiBuilder) methodMapPath(pid uint32) string {
	return filepath.Join(b.conf.MethodMapDir, fmt.Sprintf("methods-%d.map", pid))
}

func (b *multiBuilder) newProcessBuilder(pid uint32) *profile.Builder {
	resolver, err := methodmap.ParseFile(b.methodMapPath(pid))
	if err != nil {
		b.logger.Warn("Failed to load method map, frames will not resolve",
			zap.Uint32("pid", pid),
			zap.Error(err),
		)
		resolver = methodmap.Empty()
	} else {
		b.logger.Debug("Loaded method map",
			zap.Uint32("pid", pid),
			zap.Int("methods", resolver.Size()),
		)
	}

	builder := b.factory(resolver, resolver, b.conf.SamplingRate)
	builder.SetStartTime(b.profileStartTime)
	return builder
}

// AddRecords feeds one process's records into its builder. The same pid
// must not be fed concurrently.
func (b *multiBuilder) AddRecords(pid uint32, records []tracedump.Record) {
	traces := make([]profile.StackTrace, 0, len(records))
	counts := make([]int64, 0, len(records))
	for _, record := range records {
		traces = append(traces, profile.StackTrace{Trace: record.Trace, Metric: record.Metric})
		counts = append(counts, record.Count)
	}
	b.builders.Get(pid).AddTracesWithCounts(traces, counts)
}

func (b *multiBuilder) startNewProfiles() {
	b.profileStartTime = b.now()
	b.epoch++
}

func (b *multiBuilder) ProfileStartTime() time.Time {
	return b.profileStartTime
}

// RestartProfiles finishes the current epoch and returns its labeled
// profiles, one per process.
func (b *multiBuilder) RestartProfiles() []client.LabeledProfile {
	end := b.now()
	epoch := strconv.FormatUint(b.epoch, 10)

	profiles := make([]client.LabeledProfile, 0, b.builders.Size())
	b.builders.Range(func(pid uint32, builder *profile.Builder) {
		builder.SetEndTime(end)

		var prof *profile.Profile
		if b.conf.Unsample {
			prof = builder.FinishUnsampled()
		} else {
			prof = builder.Finish()
		}

		labels := make(map[string]string, len(b.conf.Labels)+3)
		maps.Copy(labels, b.conf.Labels)
		labels[client.PIDLabel] = strconv.FormatUint(uint64(pid), 10)
		labels[client.ProfileTypeLabel] = b.conf.ProfileType
		labels[client.EpochLabel] = epoch

		profiles = append(profiles, client.LabeledProfile{Labels: labels, Profile: prof})
	})

	b.builders.Clear()
	b.startNewProfiles()

	return profiles
}
