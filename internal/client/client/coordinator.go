package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
)

// clearTimeout bounds wiping the session after a failed refresh. It is
// separate from the flight's budget, which may already be spent.
const clearTimeout = 5 * time.Second

// refreshFunc performs the POST /auth/refresh round trip.
type refreshFunc func(ctx context.Context, refreshToken string) (*models.TokenPair, error)

// refreshCoordinator makes sure that requests which find the same access
// token rejected share a single refresh call. Flights are keyed by that
// stale access token.
type refreshCoordinator struct {
	group   singleflight.Group
	store   TokenStore
	refresh refreshFunc
	timeout time.Duration
}

func newRefreshCoordinator(store TokenStore, refresh refreshFunc, timeout time.Duration) *refreshCoordinator {
	return &refreshCoordinator{store: store, refresh: refresh, timeout: timeout}
}

// Refresh returns an access token newer than stale. Callers that arrive
// while a refresh for stale is running wait for it; callers that arrive
// after it finished pick up the stored result without another round trip.
//
// The flight is detached from the caller's context so that one caller
// giving up does not fail the others; it is bounded by its own timeout.
func (c *refreshCoordinator) Refresh(ctx context.Context, stale string) (string, error) {
	ch := c.group.DoChan(stale, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.run(fctx, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *refreshCoordinator) run(ctx context.Context, stale string) (string, error) {
	current, err := c.store.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("read tokens: %w", err)
	}
	if current == nil || current.RefreshToken == "" {
		return "", ErrSessionExpired
	}
	if current.AccessToken != stale {
		return current.AccessToken, nil
	}

	pair, err := c.refresh(ctx, current.RefreshToken)
	if err != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
		defer cancel()
		if cerr := c.store.Clear(cctx); cerr != nil {
			return "", errors.Join(fmt.Errorf("%w: %w", ErrSessionExpired, err), cerr)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if err := c.store.SaveTokens(ctx, pair); err != nil {
		return "", fmt.Errorf("save tokens: %w", err)
	}
	return pair.AccessToken, nil
}
