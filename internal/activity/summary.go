package activity

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
	"github.com/kornysietsma/polyglot-code-scanner/internal/users"
)

// SummaryOptions controls per-file summaries.
type SummaryOptions struct {
	// Reference is the time ages are measured from.
	Reference time.Time
	// HorizonStart is the start of the scanned window, reported in metadata.
	HorizonStart time.Time
	// MinGap splits bursts for detail entries.
	MinGap time.Duration
	// Detailed adds one detail entry per burst.
	Detailed bool
}

// Summaries holds per-file git indicators and writes them into a tree.
type Summaries struct {
	files map[string]tree.GitData
	dict  *users.Dictionary
	opts  SummaryOptions
}

// Summarize derives a GitData for every indexed file, in parallel.
func Summarize(ctx context.Context, ix *Index, dict *users.Dictionary, opts SummaryOptions) (*Summaries, error) {
	s := &Summaries{
		files: make(map[string]tree.GitData, len(ix.files)),
		dict:  dict,
		opts:  opts,
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range ix.Paths() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := summarizeFile(ix.files[p], opts)
			mu.Lock()
			s.files[p] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

func summarizeFile(events []Event, opts SummaryOptions) tree.GitData {
	var (
		data tree.GitData
		last time.Time
	)
	sets := make([][]int, 0, len(events))
	for _, e := range events {
		if e.CommitTime.After(last) {
			last = e.CommitTime
		}
		sets = append(sets, e.Users)
	}

	if len(events) > 0 && events[0].Created {
		data.CreationDate = events[0].Time.Unix()
	}
	data.LastUpdate = last.Unix()
	if age := opts.Reference.Sub(last); age > 0 {
		data.AgeInDays = int64(age / (24 * time.Hour))
	}
	data.Users = users.Union(sets...)
	if data.Users == nil {
		data.Users = []int{}
	}
	data.UserCount = len(data.Users)

	if opts.Detailed {
		for _, b := range Bursts(events, opts.MinGap) {
			data.Details = append(data.Details, tree.GitDetail{
				Users:       b.Users,
				FirstChange: b.Start.Unix(),
				LastChange:  b.End.Unix(),
				CommitCount: b.Commits,
			})
		}
	}
	return data
}

// Get returns the summary for path.
func (s *Summaries) Get(path string) (tree.GitData, bool) {
	d, ok := s.files[path]
	return d, ok
}

// Len returns the number of summarized files.
func (s *Summaries) Len() int {
	return len(s.files)
}

// Apply implements tree.Producer.
func (s *Summaries) Apply(m tree.Mutator) error {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := m.Apply(p, s.files[p]); err != nil {
			return err
		}
	}
	return nil
}

// CollectMetadata implements tree.Producer.
func (s *Summaries) CollectMetadata(md *tree.Metadata) {
	md.Git = &tree.GitMetadata{
		Users:         s.dict.Entries(),
		HorizonStart:  s.opts.HorizonStart.Unix(),
		ReferenceTime: s.opts.Reference.Unix(),
	}
}
