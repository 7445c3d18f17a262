package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultProfileTTL is how long resolved profiles stay in the cache.
const defaultProfileTTL = 5 * time.Minute

// UnknownProfile is returned for identities that cannot be resolved.
func UnknownProfile(id string) UserProfile {
	return UserProfile{ID: id, DisplayName: "Unknown User", Username: "unknown"}
}

// A Resolver turns user ids into display profiles. Resolution never fails:
// missing or unreachable profiles resolve to UnknownProfile.
type Resolver struct {
	Logger   *slog.Logger
	Profiles ProfileStore
	// Cache is optional.
	Cache    ProfileCache
	CacheTTL time.Duration
	// Demo is optional.
	Demo DemoDirectory

	sf singleflight.Group
}

// Resolve returns the profile for userID.
func (r *Resolver) Resolve(ctx context.Context, userID string) UserProfile {
	if r.Demo != nil {
		if p, ok := r.Demo.Lookup(userID); ok {
			return p
		}
	}

	// Waiters share one lookup, so it must outlive the caller that started it.
	v, err, _ := r.sf.Do(userID, func() (interface{}, error) {
		return r.lookup(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger().Warn("Could not resolve profile", "user_id", userID, "error", err.Error())
		}
		return UnknownProfile(userID)
	}
	return v.(UserProfile)
}

// ResolveAll resolves each distinct id once.
func (r *Resolver) ResolveAll(ctx context.Context, ids []string) map[string]UserProfile {
	out := make(map[string]UserProfile, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = r.Resolve(ctx, id)
	}
	return out
}

func (r *Resolver) lookup(ctx context.Context, userID string) (UserProfile, error) {
	if r.Cache != nil {
		p, err := r.Cache.GetProfile(ctx, userID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			r.logger().Warn("Profile cache get failed", "user_id", userID, "error", err.Error())
		}
	}

	p, err := r.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}

	if r.Cache != nil {
		ttl := r.CacheTTL
		if ttl <= 0 {
			ttl = defaultProfileTTL
		}
		if err := r.Cache.SetProfile(ctx, p, ttl); err != nil {
			r.logger().Warn("Profile cache set failed", "user_id", userID, "error", err.Error())
		}
	}
	return p, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
