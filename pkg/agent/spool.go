package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jvmprof/jvmprof/pkg/tracedump"
)

// Completed trace dumps. The sampler renames finished files to this
// suffix, so a file's presence means it is safe to consume.
const spoolSuffix = ".traces"

func (a *Agent) listSpool() ([]string, error) {
	entries, err := os.ReadDir(a.conf.SpoolDir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), spoolSuffix) {
			continue
		}
		files = append(files, filepath.Join(a.conf.SpoolDir, entry.Name()))
	}
	return files, nil
}

func (a *Agent) consumeSpool(ctx context.Context) error {
	files, err := a.listSpool()
	if err != nil {
		return err
	}

	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := a.consumeFile(ctx, path); err != nil {
			a.metrics.spoolFilesMalformed.Inc()
			a.logger.Error("Failed to consume trace dump",
				zap.String("path", path),
				zap.Error(err),
			)
			a.quarantine(path)
			continue
		}

		a.metrics.spoolFilesOK.Inc()
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to drop consumed trace dump %s: %w", path, err)
		}
	}

	return nil
}

// quarantine moves a malformed dump aside so it is not retried forever.
func (a *Agent) quarantine(path string) {
	if err := os.Rename(path, path+".bad"); err != nil {
		a.logger.Error("Failed to quarantine trace dump",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (a *Agent) consumeFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	batches := make(map[uint32][]tracedump.Record)
	var records, samples int64

	scanner := tracedump.NewScanner(f)
	for scanner.Scan() {
		record := scanner.Record()
		batches[record.PID] = append(batches[record.PID], record)
		records++
		samples += record.Count
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// One builder per process, so batches are independent.
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(a.conf.Workers)
	for pid, batch := range batches {
		pid, batch := pid, batch
		g.Go(func() error {
			a.builder.AddRecords(pid, batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.metrics.consumedRecords.Add(float64(records))
	a.metrics.consumedSamples.Add(float64(samples))
	a.logger.Debug("Consumed trace dump",
		zap.String("path", path),
		zap.Int64("records", records),
		zap.Int("processes", len(batches)),
	)

	return nil
}
