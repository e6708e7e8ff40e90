package tuning

import "context"

// Store persists studies.
type Store interface {
	// Load returns (nil, false, nil) when the study does not exist.
	Load(ctx context.Context, name string) (*Study, bool, error)
	// Save replaces the stored study atomically with respect to readers.
	Save(ctx context.Context, study *Study) error
	Close() error
}
