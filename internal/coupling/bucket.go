package coupling

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kornysietsma/polyglot-code-scanner/internal/activity"
)

// fileBuckets holds one file's bursts grouped by bucket.
type fileBuckets struct {
	bursts map[int64][]activity.Burst
	// active lists, ascending, the buckets with at least MinBursts bursts.
	active []int64
}

func (f *fileBuckets) isActive(b int64) bool {
	i := sort.Search(len(f.active), func(i int) bool { return f.active[i] >= b })
	return i < len(f.active) && f.active[i] == b
}

// BucketIndex is the bucketed burst data for all files.
type BucketIndex struct {
	size  time.Duration
	files map[string]*fileBuckets
	first int64
	last  int64
	empty bool
}

// bucketOf returns the epoch-aligned bucket number containing t.
func bucketOf(t time.Time, size time.Duration) int64 {
	secs := int64(size / time.Second)
	u := t.Unix()
	b := u / secs
	if u%secs < 0 {
		b--
	}
	return b
}

// BuildBuckets groups every file's bursts by start bucket, in parallel.
func BuildBuckets(ctx context.Context, bursts map[string][]activity.Burst, size time.Duration, minBursts int) (*BucketIndex, error) {
	ix := &BucketIndex{size: size, files: make(map[string]*fileBuckets, len(bursts)), empty: true}
	var mu sync.Mutex

	paths := make([]string, 0, len(bursts))
	for p := range bursts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fb := bucketFile(bursts[p], size, minBursts)
			mu.Lock()
			ix.files[p] = fb
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fb := range ix.files {
		for b := range fb.bursts {
			if ix.empty || b < ix.first {
				ix.first = b
			}
			if ix.empty || b > ix.last {
				ix.last = b
			}
			ix.empty = false
		}
	}
	return ix, nil
}

func bucketFile(bursts []activity.Burst, size time.Duration, minBursts int) *fileBuckets {
	fb := &fileBuckets{bursts: make(map[int64][]activity.Burst)}
	for _, b := range bursts {
		k := bucketOf(b.Start, size)
		fb.bursts[k] = append(fb.bursts[k], b)
	}
	for k, bs := range fb.bursts {
		if len(bs) >= minBursts {
			fb.active = append(fb.active, k)
		}
	}
	sort.Slice(fb.active, func(i, j int) bool { return fb.active[i] < fb.active[j] })
	return fb
}

// ActiveBuckets returns the buckets in which path is active.
func (ix *BucketIndex) ActiveBuckets(path string) []int64 {
	if fb, ok := ix.files[path]; ok {
		return fb.active
	}
	return nil
}

// BucketStart returns the start time of bucket b.
func (ix *BucketIndex) BucketStart(b int64) time.Time {
	return time.Unix(b*int64(ix.size/time.Second), 0).UTC()
}

// Span returns the first bucket, the number of buckets from first to last
// inclusive, and false when no file has any burst.
func (ix *BucketIndex) Span() (int64, int, bool) {
	if ix.empty {
		return 0, 0, false
	}
	return ix.first, int(ix.last-ix.first) + 1, true
}
