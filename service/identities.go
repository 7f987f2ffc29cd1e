package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

// DefaultStoreRetryInterval is the pause before the single identity store retry.
const DefaultStoreRetryInterval = 200 * time.Millisecond

// identityLoader reads and lazily creates profiles. Store failures are
// retried once, then reported as core.ErrIdentityStore.
type identityLoader struct {
	store         ports.IdentityStore
	retryInterval time.Duration
	now           func() time.Time
	creates       *singleflight.Group
}

func newIdentityLoader(store ports.IdentityStore, retryInterval time.Duration) identityLoader {
	if retryInterval <= 0 {
		retryInterval = DefaultStoreRetryInterval
	}
	return identityLoader{
		store:         store,
		retryInterval: retryInterval,
		now:           time.Now,
		creates:       &singleflight.Group{},
	}
}

// load returns core.ErrIdentityNotFound when no profile exists for key.
func (l identityLoader) load(ctx context.Context, key string) (*core.Identity, error) {
	var identity *core.Identity
	err := l.retry(ctx, func() error {
		var err error
		identity, err = l.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (l identityLoader) save(ctx context.Context, identity *core.Identity) error {
	return l.retry(ctx, func() error {
		return l.store.Set(ctx, identity.PrimaryKey, identity)
	})
}

// loadOrCreate returns the profile for address, creating a default wallet
// profile on first sign-in. Concurrent calls for one address share a
// single store round trip so a profile is never created twice.
func (l identityLoader) loadOrCreate(ctx context.Context, address string) (*core.Identity, bool, error) {
	key := core.NormalizeAddress(address)

	type result struct {
		identity *core.Identity
		created  bool
	}
	v, err, _ := l.creates.Do(key, func() (interface{}, error) {
		identity, err := l.load(ctx, key)
		if err == nil {
			return result{identity: identity}, nil
		}
		if !errors.Is(err, core.ErrIdentityNotFound) {
			return nil, err
		}

		identity = core.NewWalletIdentity(key, l.now())
		if err := l.save(ctx, identity); err != nil {
			return nil, err
		}
		return result{identity: identity, created: true}, nil
	})
	if err != nil {
		return nil, false, err
	}

	r := v.(result)
	return r.identity.Clone(), r.created, nil
}

func (l identityLoader) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.retryInterval), 1), ctx)
	err := backoff.Retry(func() error {
		if err := op(); err != nil {
			if isFinalStoreError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, policy)
	if err == nil || isFinalStoreError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrIdentityStore, err)
}

// isFinalStoreError reports errors that a retry cannot change.
func isFinalStoreError(err error) bool {
	return errors.Is(err, core.ErrIdentityNotFound) || errors.Is(err, core.ErrImmutableField)
}
