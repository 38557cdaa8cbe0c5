package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jvmprof/jvmprof/pkg/jvm/methodmap"
	"github.com/jvmprof/jvmprof/pkg/must"
	"github.com/jvmprof/jvmprof/pkg/profile"
	"github.com/jvmprof/jvmprof/pkg/tracedump"
)

var (
	aggregateCmd = &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a trace dump into a profile",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAggregate()
		},
	}

	tracesPath    string
	methodMapPath string
	profileType   string
	samplingRate  int64
	unsample      bool
	onlyPID       uint32
	outputPath    string
	collapsedOut  bool
)

func init() {
	flags := aggregateCmd.Flags()
	flags.StringVarP(&tracesPath, "traces", "t", "", "trace dump recorded by the sampler")
	flags.StringVarP(&methodMapPath, "method-map", "m", "", "method map dumped by the sampler; omit to leave frames unresolved")
	flags.StringVar(&profileType, "type", "cpu", "profile kind: cpu, heap or contention")
	flags.Int64Var(&samplingRate, "rate", 0, "sampling rate the sampler was configured with (period in nanoseconds for cpu, bytes for heap)")
	flags.BoolVar(&unsample, "unsample", false, "scale values back to real event magnitudes")
	flags.Uint32Var(&onlyPID, "pid", 0, "aggregate only this process's traces")
	flags.StringVarP(&outputPath, "output", "o", "", "output file")
	flags.BoolVar(&collapsedOut, "collapsed", false, "write collapsed stacks instead of a pprof profile")

	must.Must(aggregateCmd.MarkFlagRequired("traces"))
	must.Must(aggregateCmd.MarkFlagRequired("output"))
	must.Must(aggregateCmd.MarkFlagFilename("traces"))
	must.Must(aggregateCmd.MarkFlagFilename("method-map"))
	must.Must(aggregateCmd.MarkFlagFilename("output"))

	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate() error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()
	logger := app.Logger()

	factory, err := profile.FactoryForType(profileType)
	if err != nil {
		return err
	}

	var resolver *methodmap.Map
	if methodMapPath == "" {
		logger.Warn("No method map given, frames will not resolve")
		resolver = methodmap.Empty()
	} else {
		resolver, err = methodmap.ParseFile(methodMapPath)
		if err != nil {
			return fmt.Errorf("failed to load method map: %w", err)
		}
		logger.Debug("Loaded method map", zap.Int("methods", resolver.Size()))
	}

	records, err := readTraceDump(tracesPath)
	if err != nil {
		return err
	}
	if onlyPID == 0 {
		if pids := collectPIDs(records); len(pids) > 1 {
			logger.Warn("Trace dump spans several processes, merging them under one method map",
				zap.Int("processes", len(pids)),
			)
		}
	}

	builder := factory(resolver, resolver, samplingRate)

	traces := make([]profile.StackTrace, 0, len(records))
	counts := make([]int64, 0, len(records))
	var skipped int
	for _, record := range records {
		if onlyPID != 0 && record.PID != onlyPID {
			skipped++
			continue
		}
		traces = append(traces, profile.StackTrace{Trace: record.Trace, Metric: record.Metric})
		counts = append(counts, record.Count)
	}
	builder.AddTracesWithCounts(traces, counts)

	if skipped > 0 {
		logger.Info("Skipped other processes' traces",
			zap.Uint32("pid", onlyPID),
			zap.Int("records", skipped),
		)
	}

	var prof *profile.Profile
	if unsample {
		prof = builder.FinishUnsampled()
	} else {
		prof = builder.Finish()
	}

	size, err := writeProfile(prof, outputPath, collapsedOut)
	if err != nil {
		return err
	}

	logger.Info("Aggregated profile",
		zap.Int("records", len(traces)),
		zap.Int("samples", len(prof.Sample)),
		zap.Int("locations", len(prof.Location)),
		zap.String("path", outputPath),
		zap.String("size", humanize.Bytes(uint64(size))),
	)
	return nil
}

func readTraceDump(path string) ([]tracedump.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace dump: %w", err)
	}
	defer f.Close()

	records, err := tracedump.Decode(f)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("trace dump %s contains no records", path)
	}
	return records, nil
}

func collectPIDs(records []tracedump.Record) []uint32 {
	seen := make(map[uint32]bool)
	pids := make([]uint32, 0, 4)
	for _, record := range records {
		if !seen[record.PID] {
			seen[record.PID] = true
			pids = append(pids, record.PID)
		}
	}
	return pids
}
