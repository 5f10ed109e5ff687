package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/metrics"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"golang.org/x/sync/singleflight"
)

// AuthorCache is an optional read-through cache in front of the user directory
type AuthorCache interface {
	Get(ctx context.Context, ids []string) (map[string]*models.User, error)
	Set(ctx context.Context, users []models.User) error
}

// defaultAuthorLookupTimeout bounds a shared directory query once it no
// longer follows any single caller's context
const defaultAuthorLookupTimeout = 10 * time.Second

// AuthorDirectory resolves author ids to user records in batches
type AuthorDirectory struct {
	users         repositories.UserRepository
	cache         AuthorCache
	group         singleflight.Group
	lookupTimeout time.Duration
}

// NewAuthorDirectory creates an AuthorDirectory. cache may be nil.
func NewAuthorDirectory(users repositories.UserRepository, cache AuthorCache) *AuthorDirectory {
	return &AuthorDirectory{users: users, cache: cache, lookupTimeout: defaultAuthorLookupTimeout}
}

// Lookup returns the users among ids. Unknown ids are absent from the map;
// deciding whether that is an error is up to the caller.
func (d *AuthorDirectory) Lookup(ctx context.Context, ids []string) (map[string]*models.User, error) {
	ids = uniqueSorted(ids)
	found := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	missing := ids
	if d.cache != nil {
		cached, err := d.cache.Get(ctx, ids)
		if err != nil {
			metrics.AuthorCacheLookups.WithLabelValues("error").Inc()
			logging.Ctx(ctx).Warn().Err(err).Msg("author cache read failed")
		} else {
			missing = missing[:0:0]
			for _, id := range ids {
				if u, ok := cached[id]; ok {
					found[id] = u
					metrics.AuthorCacheLookups.WithLabelValues("hit").Inc()
				} else {
					missing = append(missing, id)
					metrics.AuthorCacheLookups.WithLabelValues("miss").Inc()
				}
			}
		}
	}
	if len(missing) == 0 {
		return found, nil
	}

	users, err := d.fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for i := range users {
		u := users[i]
		found[u.ID] = &u
	}

	if d.cache != nil && len(users) > 0 {
		if err := d.cache.Set(ctx, users); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("author cache write failed")
		}
	}
	return found, nil
}

// fetch shares one directory query between concurrent callers asking for
// the same ids. The query runs detached from any caller's cancellation,
// bounded by lookupTimeout, and each caller stops waiting on its own ctx.
func (d *AuthorDirectory) fetch(ctx context.Context, ids []string) ([]models.User, error) {
	ch := d.group.DoChan(strings.Join(ids, ","), func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.lookupTimeout)
		defer cancel()
		return d.users.GetUsersByIDs(sctx, ids)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.User), nil
	}
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
