package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jvmprof/jvmprof/pkg/atomicfs"
	"github.com/jvmprof/jvmprof/pkg/flamegraph/collapsed"
	"github.com/jvmprof/jvmprof/pkg/must"
	"github.com/jvmprof/jvmprof/pkg/storage/client"
)

var (
	collapseCmd = &cobra.Command{
		Use:   "collapse",
		Short: "Convert a pprof profile into collapsed stacks",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCollapse()
		},
	}

	collapseInput  string
	collapseOutput string
	sampleIndex    int
)

func init() {
	flags := collapseCmd.Flags()
	flags.StringVarP(&collapseInput, "input", "i", "", "pprof profile, optionally zstd-compressed")
	flags.StringVarP(&collapseOutput, "output", "o", "", "output file")
	flags.IntVar(&sampleIndex, "sample-index", -1, "sample value column to export, negative counts from the end")

	must.Must(collapseCmd.MarkFlagRequired("input"))
	must.Must(collapseCmd.MarkFlagRequired("output"))
	must.Must(collapseCmd.MarkFlagFilename("input"))
	must.Must(collapseCmd.MarkFlagFilename("output"))

	rootCmd.AddCommand(collapseCmd)
}

func runCollapse() error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Shutdown()
	logger := app.Logger()

	prof, err := client.ReadProfile(collapseInput)
	if err != nil {
		return err
	}

	index := sampleIndex
	if index < 0 {
		index += len(prof.SampleType)
	}

	flat, err := collapsed.FromProfile(prof, index)
	if err != nil {
		return err
	}

	data, err := collapsed.Marshal(flat)
	if err != nil {
		return err
	}
	if err := atomicfs.WriteFile(collapseOutput, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", collapseOutput, err)
	}

	logger.Info("Collapsed profile",
		zap.Int("stacks", len(flat.Samples)),
		zap.String("path", collapseOutput),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)
	return nil
}
