package store

import (
	"context"
	"errors"

	"github.com/kilianp07/bustrack/core/model"
)

var (
	// ErrNotFound is returned when a bucket does not exist.
	ErrNotFound = errors.New("bucket not found")
	// ErrOutOfOrder is returned when a sample is not newer than the last one
	// stored in its bucket.
	ErrOutOfOrder = errors.New("sample not newer than bucket tail")
)

// Bucket is the content stored under one key.
type Bucket struct {
	Key     Key
	Meta    model.JourneyMeta
	Samples []model.Sample
}

// Reader gives read access to trajectory buckets.
type Reader interface {
	Keys(ctx context.Context, scope Scope) ([]Key, error)
	Load(ctx context.Context, key Key) (Bucket, error)
}

// Writer appends samples to buckets. The metadata record of the bucket is
// replaced on every append. Keys failing Key.Validate are refused with a
// *FormatError and nothing is written.
type Writer interface {
	Append(ctx context.Context, key Key, sample model.Sample, meta model.JourneyMeta) error
}

// Store is a trajectory store.
type Store interface {
	Reader
	Writer
	Close() error
}

// KeyLister exposes the raw bucket names, including ones that are not valid
// keys.
type KeyLister interface {
	RawKeys(ctx context.Context) ([]string, error)
}
