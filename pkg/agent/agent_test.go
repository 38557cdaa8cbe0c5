package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jvmprof/jvmprof/pkg/config"
	"github.com/jvmprof/jvmprof/pkg/storage/client"
)

func writeSpoolFile(t *testing.T, dir, name, data string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestAgent(t *testing.T, conf *config.AgentConfig) (*Agent, *client.InMemoryStorage) {
	t.Helper()

	storage := client.NewInMemoryStorage(&client.InMemoryStorageConfig{})
	a, err := New(zaptest.NewLogger(t), conf, WithStorage(storage))
	require.NoError(t, err)
	return a, storage
}

func TestAgentConsumesSpool(t *testing.T) {
	dir := t.TempDir()
	conf := testAgentConfig(dir)

	writeMethodMap(t, dir, 100, "1 com.example.Billing charge (J)V 10 Billing.java\n")
	path := writeSpoolFile(t, dir, "epoch-1.traces",
		"# sampler dump\n"+
			"100 3 30 1:10\n"+
			"100 1 10 1:11;1:10\n",
	)
	// Files without the spool suffix are left alone.
	stray := writeSpoolFile(t, dir, "notes.txt", "keep me\n")

	a, storage := newTestAgent(t, conf)

	require.NoError(t, a.consumeSpool(context.Background()))

	assert.NoFileExists(t, path, "consumed dumps are dropped")
	assert.FileExists(t, stray)

	a.flushProfiles(context.Background(), true)

	profiles := storage.Profiles()
	require.Len(t, profiles, 1)
	prof := profiles[0].Profile
	require.Len(t, prof.Sample, 2)
	assert.Equal(t, "100", profiles[0].Labels[client.PIDLabel])
}

func TestAgentQuarantinesMalformedDumps(t *testing.T) {
	dir := t.TempDir()
	path := writeSpoolFile(t, dir, "epoch-1.traces", "not a record\n")

	a, storage := newTestAgent(t, testAgentConfig(dir))

	require.NoError(t, a.consumeSpool(context.Background()))

	assert.NoFileExists(t, path)
	assert.FileExists(t, path+".bad", "malformed dumps are moved aside, not retried")
	assert.Zero(t, storage.Size())
}

func TestAgentFlushHonorsEgressInterval(t *testing.T) {
	dir := t.TempDir()
	conf := testAgentConfig(dir)
	conf.EgressInterval = time.Minute

	a, _ := newTestAgent(t, conf)
	clock := newFakeClock()
	a.now = clock.Now
	a.builder.now = clock.Now
	// Rebase the running epoch onto the fake clock.
	a.builder.startNewProfiles()

	writeSpoolFile(t, dir, "epoch-1.traces", "100 1 10 1:10\n")
	require.NoError(t, a.consumeSpool(context.Background()))

	a.maybeFlushProfiles(context.Background())
	assert.Empty(t, a.profiles, "flush before the egress interval elapses")

	clock.Advance(2 * time.Minute)
	a.maybeFlushProfiles(context.Background())
	assert.Len(t, a.profiles, 1)
}

func TestAgentRunFlushesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	conf := testAgentConfig(dir)
	conf.PollInterval = 10 * time.Millisecond
	conf.EgressInterval = time.Hour

	writeMethodMap(t, dir, 100, "1 com.example.Billing charge (J)V 10 Billing.java\n")
	path := writeSpoolFile(t, dir, "epoch-1.traces", "100 2 20 1:10\n")

	a, storage := newTestAgent(t, conf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond, "spool file never consumed")

	// The egress interval has not elapsed, so the profile is still pending;
	// shutdown must flush it.
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	profiles := storage.Profiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, []int64{2, 20}, profiles[0].Profile.Sample[0].Value)
}

func TestAgentRequiresStorage(t *testing.T) {
	_, err := New(zaptest.NewLogger(t), testAgentConfig(t.TempDir()))
	assert.Error(t, err)
}
