package subscriber

import (
	"context"
	"time"
)

// birthdayTodayFetcher queries auth for users whose birth month/day equal
// today (UTC), paginating page by page until a page comes back empty.
// Mirrors subscriber_fetchers.py's fetch_birthday_users.
func birthdayTodayFetcher(auth AuthClient) Fetcher {
	return func(ctx context.Context, _ map[string]any, batchSize int) (<-chan []string, <-chan error) {
		batches := make(chan []string)
		errs := make(chan error, 1)

		go func() {
			defer close(batches)
			defer close(errs)

			now := time.Now().UTC()
			page := 1
			for {
				users, err := auth.GetUsers(ctx, int(now.Month()), now.Day(), page, batchSize)
				if err != nil {
					errs <- err
					return
				}
				if len(users) == 0 {
					return
				}

				select {
				case batches <- users:
				case <-ctx.Done():
					return
				}
				page++
			}
		}()

		return batches, errs
	}
}
