package subscriber

import (
	"context"

	"github.com/notifyhub/pipeline/internal/domain"
)

// Fetcher is the contract every registered query type implements: given
// params and a batch size, it produces a finite, non-restartable sequence
// of subscriber-id batches on the returned channel. The channel closes on
// exhaustion; a fetch error is sent on the error channel and both channels
// close immediately after.
type Fetcher func(ctx context.Context, params map[string]any, batchSize int) (<-chan []string, <-chan error)

// Resolver is the process-wide, read-only-after-init registry of named
// subscriber fetchers. Mirrors SubscriberResolver._fetchers, generalized
// from a class-level dict of decorated functions to an explicit instance
// built at startup.
type Resolver struct {
	fetchers map[string]Fetcher
}

// NewResolver builds a Resolver with the birthday_today fetcher registered
// against auth. Callers may Register additional fetchers before the
// registry is handed to any worker.
func NewResolver(auth AuthClient) *Resolver {
	r := &Resolver{fetchers: make(map[string]Fetcher)}
	r.Register("birthday_today", birthdayTodayFetcher(auth))
	return r
}

func (r *Resolver) Register(queryType string, f Fetcher) {
	r.fetchers[queryType] = f
}

// Resolve returns the batch/error channels for queryType, or
// domain.ErrUnknownQueryType if no fetcher was registered under that name.
func (r *Resolver) Resolve(ctx context.Context, queryType string, params map[string]any, batchSize int) (<-chan []string, <-chan error, error) {
	f, ok := r.fetchers[queryType]
	if !ok {
		return nil, nil, domain.ErrUnknownQueryType
	}
	batches, errs := f(ctx, params, batchSize)
	return batches, errs, nil
}
