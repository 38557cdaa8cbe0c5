package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type agentMetrics struct {
	consumedRecords prometheus.Counter
	consumedSamples prometheus.Counter

	spoolFilesOK        prometheus.Counter
	spoolFilesMalformed prometheus.Counter

	profilesBuilt   prometheus.Counter
	profilesDropped prometheus.Counter
	profilesStored  prometheus.Counter
	profilesFailed  prometheus.Counter
}

func newAgentMetrics(reg prometheus.Registerer) *agentMetrics {
	factory := promauto.With(reg)

	spoolFiles := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jvmprof",
		Subsystem: "agent",
		Name:      "spool_files_total",
		Help:      "Trace dump files consumed from the spool directory.",
	}, []string{"status"})

	profiles := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jvmprof",
		Subsystem: "agent",
		Name:      "profiles_total",
		Help:      "Aggregated profiles by outcome.",
	}, []string{"kind"})

	return &agentMetrics{
		consumedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jvmprof",
			Subsystem: "agent",
			Name:      "consumed_records_total",
			Help:      "Trace dump records fed into builders.",
		}),
		consumedSamples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jvmprof",
			Subsystem: "agent",
			Name:      "consumed_samples_total",
			Help:      "Raw samples represented by the consumed records.",
		}),

		spoolFilesOK:        spoolFiles.WithLabelValues("ok"),
		spoolFilesMalformed: spoolFiles.WithLabelValues("malformed"),

		profilesBuilt:   profiles.WithLabelValues("built"),
		profilesDropped: profiles.WithLabelValues("dropped"),
		profilesStored:  profiles.WithLabelValues("stored"),
		profilesFailed:  profiles.WithLabelValues("storage_failure"),
	}
}
