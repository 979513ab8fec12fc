package tree

import (
	"github.com/kornysietsma/polyglot-code-scanner/internal/users"
)

// GitDetail summarizes one activity burst on a file.
type GitDetail struct {
	Users       []int `json:"users"`
	FirstChange int64 `json:"first_change"`
	LastChange  int64 `json:"last_change"`
	CommitCount int   `json:"commit_count"`
}

// GitData is the per-file history indicator. Times are epoch seconds.
type GitData struct {
	AgeInDays    int64       `json:"age_in_days"`
	LastUpdate   int64       `json:"last_update"`
	CreationDate int64       `json:"creation_date,omitempty"`
	UserCount    int         `json:"user_count"`
	Users        []int       `json:"users"`
	Details      []GitDetail `json:"details,omitempty"`
}

func (g GitData) attach(d *Data) {
	d.Git = &g
}

// RepoData describes the repository a directory belongs to.
type RepoData struct {
	RemoteURL string `json:"remote_url,omitempty"`
	Head      string `json:"head,omitempty"`
}

func (r RepoData) attach(d *Data) {
	d.GitRepo = &r
}

// CouplingLink is an outgoing coupling edge of a file.
type CouplingLink struct {
	To               string  `json:"to"`
	Ratio            float64 `json:"ratio"`
	SharedBuckets    int     `json:"shared_buckets"`
	LastSharedPeriod int64   `json:"last_shared_period"`
}

// CouplingData lists the files a file is coupled to.
type CouplingData struct {
	ActiveBuckets int            `json:"active_buckets"`
	Links         []CouplingLink `json:"links"`
}

func (c CouplingData) attach(d *Data) {
	d.Coupling = &c
}

// Metadata is the scan-level section of the output.
type Metadata struct {
	Git      *GitMetadata      `json:"git,omitempty"`
	Coupling *CouplingMetadata `json:"coupling,omitempty"`
}

// GitMetadata describes the history scan. Times are epoch seconds.
type GitMetadata struct {
	Users         []users.Entry `json:"users"`
	HorizonStart  int64         `json:"horizon_start"`
	ReferenceTime int64         `json:"reference_time"`
}

// CouplingMetadata records the bucket layout and thresholds of a coupling run.
type CouplingMetadata struct {
	BucketSize            int64   `json:"bucket_size"`
	BucketCount           int     `json:"bucket_count"`
	FirstBucketStart      int64   `json:"first_bucket_start"`
	MinBursts             int     `json:"min_bursts"`
	MinActivityGapMinutes int     `json:"min_activity_gap_minutes"`
	TimeOverlapMinutes    int     `json:"time_overlap_minutes"`
	MinRatio              float64 `json:"min_ratio"`
	MinDistance           int     `json:"min_distance"`
	MaxCommonRoots        int     `json:"max_common_roots"`
}
