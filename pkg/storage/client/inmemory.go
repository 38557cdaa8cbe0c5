package client

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
)

const defaultMaxStoredProfiles = 128

type InMemoryStorageConfig struct {
	// High watermark: crossing it drops the oldest half of the buffer.
	MaxProfiles int `yaml:"max_profiles"`
}

func (c *InMemoryStorageConfig) FillDefault() {
	if c.MaxProfiles <= 0 {
		c.MaxProfiles = defaultMaxStoredProfiles
	}
}

// StoredProfile is a profile retained by InMemoryStorage.
type StoredProfile struct {
	ID ProfileID
	LabeledProfile
}

// InMemoryStorage keeps the most recent profiles in memory. When the high
// watermark is reached the oldest half is dropped in one cut, so steady
// ingestion does not shift the buffer on every store.
type InMemoryStorage struct {
	mu          sync.Mutex
	maxProfiles int
	profiles    []StoredProfile
}

var _ ProfileStorage = (*InMemoryStorage)(nil)

func NewInMemoryStorage(conf *InMemoryStorageConfig) *InMemoryStorage {
	conf.FillDefault()
	return &InMemoryStorage{maxProfiles: conf.MaxProfiles}
}

func (s *InMemoryStorage) StoreProfile(ctx context.Context, prof LabeledProfile) (ProfileID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = append(s.profiles, StoredProfile{ID: ProfileID(id.String()), LabeledProfile: prof})
	if len(s.profiles) > s.maxProfiles {
		low := (s.maxProfiles + 1) / 2
		s.profiles = append(s.profiles[:0], s.profiles[len(s.profiles)-low:]...)
	}

	return ProfileID(id.String()), nil
}

// Profiles returns the retained profiles, oldest first.
func (s *InMemoryStorage) Profiles() []StoredProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]StoredProfile, len(s.profiles))
	copy(res, s.profiles)
	return res
}

func (s *InMemoryStorage) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}
