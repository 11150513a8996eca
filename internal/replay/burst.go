package replay

import (
	"context"
	"sync"
	"sync/atomic"
)

// Stats summarises a burst.
type Stats struct {
	Sent   int
	OK     int
	Failed int
	// Tokens counts response bodies, e.g. "OK" or "nope".
	Tokens map[string]int
}

// Burst sends count labeled-issue events spread round robin over logins
// using workers concurrent senders. It stops early when ctx ends.
func Burst(ctx context.Context, c *Client, label string, logins []string, count, workers int) Stats {
	if workers < 1 {
		workers = 1
	}
	if len(logins) == 0 || count < 1 {
		return Stats{Tokens: map[string]int{}}
	}

	var (
		sent, ok, failed int64
		mu               sync.Mutex
		tokens           = map[string]int{}
		wg               sync.WaitGroup
	)

	jobs := make(chan int, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				res, err := c.Issue(ctx, Issue{
					Action: "labeled",
					Label:  label,
					Login:  logins[n%len(logins)],
					Number: n + 1,
				})
				atomic.AddInt64(&sent, 1)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&ok, 1)
				mu.Lock()
				tokens[res.Body]++
				mu.Unlock()
			}
		}()
	}

feed:
	for n := 0; n < count; n++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- n:
		}
	}
	close(jobs)
	wg.Wait()

	return Stats{
		Sent:   int(sent),
		OK:     int(ok),
		Failed: int(failed),
		Tokens: tokens,
	}
}
