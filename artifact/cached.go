package artifact

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

type cacheKey struct {
	name  string
	phase string
}

// CachedStore is a read-through LRU cache over another Store. Writes go to
// the inner store and drop the cached entry.
type CachedStore struct {
	inner Store
	cache *lru.Cache[cacheKey, PredictedFeature]
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore caches up to size entries of inner.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	cache, err := lru.New[cacheKey, PredictedFeature](size)
	if err != nil {
		return nil, errors.NewConfigurationError("artifact_cache_size", err.Error(), size)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) Write(ctx context.Context, f PredictedFeature) error {
	s.cache.Remove(cacheKey{f.Name, f.Phase})
	return s.inner.Write(ctx, f)
}

// Read returns a copy, so callers cannot modify the cached entry.
func (s *CachedStore) Read(ctx context.Context, name, phase string) (PredictedFeature, error) {
	key := cacheKey{name, phase}
	if f, ok := s.cache.Get(key); ok {
		return clone(f), nil
	}
	f, err := s.inner.Read(ctx, name, phase)
	if err != nil {
		return PredictedFeature{}, err
	}
	s.cache.Add(key, clone(f))
	return f, nil
}

func (s *CachedStore) Exists(ctx context.Context, name, phase string) (bool, error) {
	if s.cache.Contains(cacheKey{name, phase}) {
		return true, nil
	}
	return s.inner.Exists(ctx, name, phase)
}

// Len returns the number of cached entries.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}

func clone(f PredictedFeature) PredictedFeature {
	f.Index = append([]string(nil), f.Index...)
	f.Values = append([]float64(nil), f.Values...)
	return f
}
