package activity

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kornysietsma/polyglot-code-scanner/internal/users"
)

// Burst is a run of events on one file with every gap below the threshold.
type Burst struct {
	Start   time.Time
	End     time.Time
	Users   []int
	Commits int
}

// Bursts splits time-ordered events. An event joins the current burst when
// it follows the previous event by strictly less than minGap.
func Bursts(events []Event, minGap time.Duration) []Burst {
	if len(events) == 0 {
		return nil
	}

	var bursts []Burst
	cur := Burst{Start: events[0].Time, End: events[0].Time, Users: events[0].Users, Commits: 1}
	for _, e := range events[1:] {
		if e.Time.Sub(cur.End) < minGap {
			if e.Time.After(cur.End) {
				cur.End = e.Time
			}
			cur.Users = users.Union(cur.Users, e.Users)
			cur.Commits++
			continue
		}
		bursts = append(bursts, cur)
		cur = Burst{Start: e.Time, End: e.Time, Users: e.Users, Commits: 1}
	}
	return append(bursts, cur)
}

// AllBursts computes bursts for every indexed file in parallel.
func (ix *Index) AllBursts(ctx context.Context, minGap time.Duration) (map[string][]Burst, error) {
	out := make(map[string][]Burst, len(ix.files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range ix.Paths() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := Bursts(ix.files[p], minGap)
			mu.Lock()
			out[p] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
