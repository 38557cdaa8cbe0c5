package client

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	gprofile "github.com/google/pprof/profile"

	"github.com/jvmprof/jvmprof/pkg/atomicfs"
	"github.com/jvmprof/jvmprof/pkg/profile"
)

////////////////////////////////////////////////////////////////////////////////

type CompressionFunction func([]byte) ([]byte, error)

func compressZstd(data []byte, level int) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, []byte{}), nil
}

func compressionFunctionFromString(compression string) (CompressionFunction, string, error) {
	if compression == "" || compression == "none" {
		return nil, ".pb", nil
	}

	if strings.HasPrefix(compression, "zstd") {
		level := 6
		if compression != "zstd" {
			if _, err := fmt.Sscanf(compression, "zstd_%d", &level); err != nil {
				return nil, "", fmt.Errorf("unrecognized compression codec %s", compression)
			}
		}
		return func(data []byte) ([]byte, error) {
			return compressZstd(data, level)
		}, ".pb.zst", nil
	}

	return nil, "", fmt.Errorf("unrecognized compression codec %s", compression)
}

////////////////////////////////////////////////////////////////////////////////

type LocalStorageConfig struct {
	// Directory profiles are written into. Created if missing.
	Dir string `yaml:"dir"`

	// "", "none", "zstd" or "zstd_<level>".
	Compression string `yaml:"compression"`
}

// LocalStorage writes profiles into a directory, one file per profile,
// named <kind>-<uuid>.pb[.zst]. Files appear atomically.
type LocalStorage struct {
	logger   *zap.Logger
	dir      string
	compress CompressionFunction
	suffix   string
}

var _ ProfileStorage = (*LocalStorage)(nil)

func NewLocalStorage(conf *LocalStorageConfig, logger *zap.Logger) (*LocalStorage, error) {
	if conf.Dir == "" {
		return nil, fmt.Errorf("local storage requires a directory")
	}

	compress, suffix, err := compressionFunctionFromString(conf.Compression)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare profile directory: %w", err)
	}

	return &LocalStorage{
		logger:   logger,
		dir:      conf.Dir,
		compress: compress,
		suffix:   suffix,
	}, nil
}

func (s *LocalStorage) StoreProfile(ctx context.Context, prof LabeledProfile) (ProfileID, error) {
	if err := prof.Profile.CheckValid(); err != nil {
		return "", fmt.Errorf("refusing to store malformed profile: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	body, err := serializeProfile(prof)
	if err != nil {
		return "", err
	}

	if s.compress != nil {
		body, err = s.compress(body)
		if err != nil {
			return "", fmt.Errorf("failed to compress profile: %w", err)
		}
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", profileKind(prof.Profile), id, s.suffix))
	if err := atomicfs.WriteFile(path, body); err != nil {
		return "", err
	}

	s.logger.Debug("Stored profile",
		zap.String("id", id.String()),
		zap.String("path", path),
		zap.Int("size", len(body)),
	)

	return ProfileID(id.String()), nil
}

// serializeProfile encodes the profile with its labels riding along as
// profile comments. The caller's view of the profile is left untouched.
func serializeProfile(prof LabeledProfile) ([]byte, error) {
	saved := prof.Profile.Comments
	defer func() {
		prof.Profile.Comments = saved
	}()
	prof.Profile.Comments = append(slices.Clone(saved), labelComments(prof.Labels)...)

	var buf bytes.Buffer
	if err := prof.Profile.WriteUncompressed(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize profile: %w", err)
	}
	return buf.Bytes(), nil
}

func labelComments(labels map[string]string) []string {
	keys := maps.Keys(labels)
	slices.Sort(keys)

	comments := make([]string, 0, len(keys))
	for _, key := range keys {
		comments = append(comments, key+"="+labels[key])
	}
	return comments
}

// profileKind names the profile after its default sample type.
func profileKind(p *profile.Profile) string {
	if len(p.SampleType) == 0 {
		return "profile"
	}
	return p.SampleType[len(p.SampleType)-1].Type
}

////////////////////////////////////////////////////////////////////////////////

// ReadProfile loads a profile written by LocalStorage, transparently
// undoing zstd compression.
func ReadProfile(path string) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".zst") {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()

		data, err = decoder.DecodeAll(data, []byte{})
		if err != nil {
			return nil, fmt.Errorf("failed to uncompress profile %s: %w", path, err)
		}
	}

	prof, err := gprofile.ParseData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return prof, nil
}
