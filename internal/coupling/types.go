// Package coupling measures which files change together.
//
// Each file's activity bursts are grouped into fixed-width buckets aligned to
// the Unix epoch. A file is active in a bucket when enough bursts start in
// it. Two files are coupled in a bucket when both are active there and at
// least one pair of their bursts overlaps in time. The coupling ratio from A
// to B is the share of A's active buckets in which B is coupled with A.
package coupling

import "time"

// Options configures the engine. Zero values fall back to defaults, except
// MinDistance and MaxCommonRoots where zero disables the filter and
// MinActivityGap where zero starts a new burst at every change.
type Options struct {
	BucketDays     int
	MinBursts      int
	MinActivityGap time.Duration
	TimeOverlap    time.Duration
	MinRatio       float64
	MinDistance    int
	MaxCommonRoots int
}

const (
	defaultBucketDays = 91
	defaultMinBursts  = 1
	defaultMinRatio   = 0.8
)

func (o Options) withDefaults() Options {
	if o.BucketDays <= 0 {
		o.BucketDays = defaultBucketDays
	}
	if o.MinBursts <= 0 {
		o.MinBursts = defaultMinBursts
	}
	if o.MinActivityGap < 0 {
		o.MinActivityGap = 0
	}
	if o.TimeOverlap < 0 {
		o.TimeOverlap = 0
	}
	if o.MinRatio <= 0 {
		o.MinRatio = defaultMinRatio
	}
	return o
}

// BucketSize returns the bucket width.
func (o Options) BucketSize() time.Duration {
	return time.Duration(o.BucketDays) * 24 * time.Hour
}

// Edge is a directed coupling from one file to another.
type Edge struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Ratio         float64 `json:"ratio"`
	SharedBuckets int     `json:"shared_buckets"`
	ActiveBuckets int     `json:"active_buckets"`
	// LastSharedPeriod is the start of the latest shared bucket, in epoch seconds.
	LastSharedPeriod int64 `json:"last_shared_period"`
}
