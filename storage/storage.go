// Package storage handles persistence of campaign notification state.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"campaign-notifier/pkg/campaign"

	gcs "cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// retentionWindow bounds state growth: a campaign not seen for this long is
// dropped from the store on the next run.
const retentionWindow = 14 * 24 * time.Hour

// Store persists the campaign state as a single JSON object, either on the
// local filesystem or in a Cloud Storage bucket. Scheduled jobs typically
// run on ephemeral disks, so the bucket mode is the durable option.
type Store struct {
	client    *gcs.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	objectKey string
}

// New creates a storage handler. When bucket is empty the state lives at
// localPath; otherwise it is the named object in the bucket.
func New(client *gcs.Client, bucket, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
		objectKey: filepath.Base(localPath),
	}
}

// Load reads the persisted state. A missing or corrupt state file is not an
// error: both come back as empty state so a fresh deployment (or a mangled
// file) simply re-seeds on the next save.
func (s *Store) Load(ctx context.Context) (campaign.State, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		s.logger.Info("No persisted state found, starting empty", "path", s.localPath, "bucket", s.bucket)
		return campaign.State{}, nil
	}

	var state campaign.State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("Persisted state is not valid JSON, treating as empty", "error", err)
		return campaign.State{}, nil
	}
	if state == nil {
		state = campaign.State{}
	}

	s.logger.Info("Campaign state loaded", "entries", len(state))
	return state, nil
}

// read returns the raw state bytes, or nil when no state exists yet.
func (s *Store) read(ctx context.Context) ([]byte, error) {
	if s.bucket == "" {
		data, err := os.ReadFile(s.localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read state file: %w", err)
		}
		return data, nil
	}

	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(s.objectKey).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, gcs.ErrObjectNotExist) {
					return retry.Unrecoverable(openErr)
				}
				return fmt.Errorf("open state reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close state reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read state object: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state load after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

// Save persists the full state. Called exactly once per run, after all
// notification attempts have been reconciled and stale entries pruned.
func (s *Store) Save(ctx context.Context, state campaign.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if s.bucket == "" {
		if dir := filepath.Dir(s.localPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create state directory: %w", err)
			}
		}
		if err := os.WriteFile(s.localPath, data, 0o600); err != nil {
			return fmt.Errorf("write state file: %w", err)
		}
		s.logger.Info("Campaign state saved", "path", s.localPath, "entries", len(state))
		return nil
	}

	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(s.objectKey).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write state object: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close state writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state save after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}

	s.logger.Info("Campaign state saved", "bucket", s.bucket, "object", s.objectKey, "entries", len(state))
	return nil
}

// Prune removes entries whose last sighting is older than the retention
// window. Entries with a missing or unparseable last_seen_at are kept: only
// confidently stale state is removed.
func Prune(state campaign.State, now time.Time) {
	cutoff := now.Add(-retentionWindow)
	for id, entry := range state {
		if entry == nil || entry.LastSeenAt == "" {
			continue
		}
		lastSeen, err := time.Parse(time.RFC3339, entry.LastSeenAt)
		if err != nil {
			continue
		}
		if lastSeen.Before(cutoff) {
			delete(state, id)
		}
	}
}
