// Package agent turns trace dumps spooled by the in-process sampler into
// aggregated pprof profiles and hands them to storage once per epoch.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jvmprof/jvmprof/pkg/config"
	"github.com/jvmprof/jvmprof/pkg/storage/client"
)

const profileQueueCapacity = 64

type Agent struct {
	logger   *zap.Logger
	conf     *config.AgentConfig
	storage  client.ProfileStorage
	registry prometheus.Registerer
	builder  *multiBuilder
	metrics  *agentMetrics

	profiles chan client.LabeledProfile
	now      func() time.Time
}

type Option func(*Agent) error

func WithStorage(storage client.ProfileStorage) Option {
	return func(a *Agent) error {
		if a.storage != nil {
			return fmt.Errorf("refusing to overwrite agent storage")
		}
		a.storage = storage
		return nil
	}
}

func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(a *Agent) error {
		a.registry = registry
		return nil
	}
}

func New(logger *zap.Logger, conf *config.AgentConfig, opts ...Option) (*Agent, error) {
	a := &Agent{
		logger:   logger,
		conf:     conf,
		profiles: make(chan client.LabeledProfile, profileQueueCapacity),
		now:      time.Now,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.storage == nil {
		return nil, fmt.Errorf("agent requires a profile storage")
	}

	a.metrics = newAgentMetrics(a.registry)

	builder, err := newMultiBuilder(logger, conf, func() time.Time { return a.now() })
	if err != nil {
		return nil, err
	}
	a.builder = builder

	return a, nil
}

// Run consumes the spool directory until ctx is canceled. Profiles
// accumulated at cancellation time are flushed before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("Starting agent",
		zap.String("spool", a.conf.SpoolDir),
		zap.String("profile_type", a.conf.ProfileType),
		zap.Duration("egress_interval", a.conf.EgressInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runSpoolConsumer(ctx) })
	g.Go(func() error { return a.runProfileSender(ctx) })
	return g.Wait()
}

func (a *Agent) runSpoolConsumer(ctx context.Context) error {
	ticker := time.NewTicker(a.conf.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sctx := context.WithoutCancel(ctx)
			a.drainQueuedProfiles(sctx)
			a.flushProfiles(sctx, true)
			return ctx.Err()
		case <-ticker.C:
		}

		if err := a.consumeSpool(ctx); err != nil {
			a.logger.Error("Failed to consume spool directory", zap.Error(err))
		}
		a.maybeFlushProfiles(ctx)
	}
}

func (a *Agent) maybeFlushProfiles(ctx context.Context) {
	if a.now().Sub(a.builder.ProfileStartTime()) >= a.conf.EgressInterval {
		a.flushProfiles(ctx, false)
	}
}

// flushProfiles ends the epoch. Profiles normally go through the sender
// queue; direct mode stores them in place and is used during shutdown.
func (a *Agent) flushProfiles(ctx context.Context, direct bool) {
	for _, prof := range a.builder.RestartProfiles() {
		a.metrics.profilesBuilt.Inc()

		if direct {
			a.saveProfile(ctx, prof)
			continue
		}
		select {
		case a.profiles <- prof:
		default:
			a.metrics.profilesDropped.Inc()
			a.logger.Warn("Dropped profile, sender is falling behind", zap.Any("labels", prof.Labels))
		}
	}
}

func (a *Agent) runProfileSender(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case prof := <-a.profiles:
			a.saveProfile(ctx, prof)
		}
	}
}

func (a *Agent) drainQueuedProfiles(ctx context.Context) {
	for {
		select {
		case prof := <-a.profiles:
			a.saveProfile(ctx, prof)
		default:
			return
		}
	}
}

func (a *Agent) saveProfile(ctx context.Context, prof client.LabeledProfile) {
	if len(prof.Profile.Sample) == 0 {
		a.logger.Debug("Skipping empty profile", zap.Any("labels", prof.Labels))
		return
	}

	id, err := a.storage.StoreProfile(ctx, prof)
	if err != nil {
		a.metrics.profilesFailed.Inc()
		a.logger.Error("Failed to save profile", zap.Error(err))
		return
	}

	a.metrics.profilesStored.Inc()
	a.logger.Info("Saved profile",
		zap.String("id", string(id)),
		zap.Any("labels", prof.Labels),
		zap.Int("samples", len(prof.Profile.Sample)),
	)
}
