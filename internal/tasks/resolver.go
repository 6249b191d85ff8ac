package tasks

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// LabelFinder looks labels up by exact name within one owner.
//
// Implemented by [repositories.LabelRepository].
type LabelFinder interface {
	FindByName(ctx context.Context, userID, name string) ([]*models.Label, error)
}

// LabelResolver maps the label token of a CSV row to an existing label of the csvfile's owner.
//
// Hits are cached by (owner, name) for a short TTL. Misses are never cached so a label
// created right after a failed upload is found on the retry.
type LabelResolver struct {
	labels LabelFinder
	cache  *freecache.Cache
	ttl    int
}

// NewLabelResolver creates a resolver. A nil cache disables caching.
func NewLabelResolver(labels LabelFinder, cache *freecache.Cache, ttlSeconds int) *LabelResolver {
	return &LabelResolver{labels: labels, cache: cache, ttl: ttlSeconds}
}

// Resolve returns the oldest label owned by userID named exactly token.
//
// No match wraps [shared.ErrUnknownLabel].
func (r *LabelResolver) Resolve(ctx context.Context, userID, token string) (*models.Label, error) {
	key := cacheKey(userID, token)

	if r.cache != nil {
		if id, err := r.cache.Get(key); err == nil {
			label := models.NewLabel(0, userID, token)
			label.SetID(string(id))
			return label, nil
		}
	}

	matches, err := r.labels.FindByName(ctx, userID, token)
	if err != nil {
		return nil, fmt.Errorf("%w: label lookup: %v", shared.ErrStorage, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownLabel, token)
	}

	label := matches[0]
	if r.cache != nil {
		// best effort
		_ = r.cache.Set(key, []byte(label.ID()), r.ttl)
	}
	return label, nil
}

// Forget drops the cached resolution of name for userID.
func (r *LabelResolver) Forget(userID, name string) {
	if r.cache != nil {
		r.cache.Del(cacheKey(userID, name))
	}
}

func cacheKey(userID, name string) []byte {
	return []byte(userID + "\x00" + name)
}
