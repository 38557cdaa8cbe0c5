// Package client is the agent-side profile storage surface: aggregated
// profiles labeled with their origin go in, profile IDs come out.
package client

import (
	"context"

	"github.com/jvmprof/jvmprof/pkg/profile"
)

// Well-known label keys attached to stored profiles.
const (
	ServiceLabel     = "service"
	ProfileTypeLabel = "profile_type"
	PIDLabel         = "pid"
	EpochLabel       = "epoch"
)

type ProfileID string

// LabeledProfile is one aggregated profile together with the labels
// describing where it came from.
type LabeledProfile struct {
	Labels  map[string]string
	Profile *profile.Profile
}

type ProfileStorage interface {
	StoreProfile(ctx context.Context, prof LabeledProfile) (ProfileID, error)
}
