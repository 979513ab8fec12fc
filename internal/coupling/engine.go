package coupling

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kornysietsma/polyglot-code-scanner/internal/activity"
	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
)

// Engine computes coupling edges from a file activity index.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an engine with opts, filling unset values with defaults.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	return &Engine{opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Result is the output of Analyze. Edges are sorted by (From, To).
type Result struct {
	Edges []Edge
	index *BucketIndex
	opts  Options
}

// Analyze bursts and buckets every file in ix and evaluates all pairs.
func (e *Engine) Analyze(ctx context.Context, ix *activity.Index) (*Result, error) {
	bursts, err := ix.AllBursts(ctx, e.opts.MinActivityGap)
	if err != nil {
		return nil, err
	}
	buckets, err := BuildBuckets(ctx, bursts, e.opts.BucketSize(), e.opts.MinBursts)
	if err != nil {
		return nil, err
	}

	var active []string
	for p, fb := range buckets.files {
		if len(fb.active) > 0 {
			active = append(active, p)
		}
	}
	sort.Strings(active)

	var (
		edges []Edge
		mu    sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found := e.evaluateFrom(buckets, active, i)
			if len(found) == 0 {
				return nil
			}
			mu.Lock()
			edges = append(edges, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	e.logger.Info("Computed temporal coupling",
		"files", len(bursts),
		"activeFiles", len(active),
		"edges", len(edges),
	)
	return &Result{Edges: edges, index: buckets, opts: e.opts}, nil
}

// evaluateFrom compares active[i] with every later file.
func (e *Engine) evaluateFrom(ix *BucketIndex, active []string, i int) []Edge {
	a := active[i]
	fa := ix.files[a]

	var edges []Edge
	for _, b := range active[i+1:] {
		if !e.structurallyDistant(a, b) {
			continue
		}
		fb := ix.files[b]
		shared, last := sharedBuckets(fa, fb, e.opts.TimeOverlap)
		if shared == 0 {
			continue
		}
		lastStart := ix.BucketStart(last).Unix()
		if edge, ok := e.edge(a, b, shared, len(fa.active), lastStart); ok {
			edges = append(edges, edge)
		}
		if edge, ok := e.edge(b, a, shared, len(fb.active), lastStart); ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

func (e *Engine) edge(from, to string, shared, active int, last int64) (Edge, bool) {
	ratio := float64(shared) / float64(active)
	if ratio < e.opts.MinRatio {
		return Edge{}, false
	}
	return Edge{
		From:             from,
		To:               to,
		Ratio:            ratio,
		SharedBuckets:    shared,
		ActiveBuckets:    active,
		LastSharedPeriod: last,
	}, true
}

// structurallyDistant applies the common-root and distance filters.
func (e *Engine) structurallyDistant(a, b string) bool {
	if e.opts.MaxCommonRoots > 0 && CommonRoots(a, b) > e.opts.MaxCommonRoots {
		return false
	}
	return Distance(a, b) >= e.opts.MinDistance
}

// sharedBuckets counts the buckets where both files are active and some pair
// of their bursts overlaps, and returns the latest such bucket.
func sharedBuckets(fa, fb *fileBuckets, pad time.Duration) (int, int64) {
	var (
		shared int
		last   int64
	)
	for _, k := range fa.active {
		if !fb.isActive(k) {
			continue
		}
		if anyOverlap(fa.bursts[k], fb.bursts[k], pad) {
			shared++
			last = k
		}
	}
	return shared, last
}

func anyOverlap(as, bs []activity.Burst, pad time.Duration) bool {
	for _, a := range as {
		for _, b := range bs {
			if Overlaps(a, b, pad) {
				return true
			}
		}
	}
	return false
}

// Overlaps reports whether a and b, each widened by pad on both ends, share
// at least one instant.
func Overlaps(a, b activity.Burst, pad time.Duration) bool {
	aStart, aEnd := a.Start.Add(-pad), a.End.Add(pad)
	bStart, bEnd := b.Start.Add(-pad), b.End.Add(pad)
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// Apply implements tree.Producer. Each source file gets its outgoing edges.
func (r *Result) Apply(m tree.Mutator) error {
	var (
		cur  *tree.CouplingData
		from string
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		return m.Apply(from, *cur)
	}
	for _, edge := range r.Edges {
		if cur == nil || edge.From != from {
			if err := flush(); err != nil {
				return err
			}
			from = edge.From
			cur = &tree.CouplingData{ActiveBuckets: edge.ActiveBuckets}
		}
		cur.Links = append(cur.Links, tree.CouplingLink{
			To:               edge.To,
			Ratio:            edge.Ratio,
			SharedBuckets:    edge.SharedBuckets,
			LastSharedPeriod: edge.LastSharedPeriod,
		})
	}
	return flush()
}

// CollectMetadata implements tree.Producer.
func (r *Result) CollectMetadata(md *tree.Metadata) {
	first, count, _ := r.index.Span()
	md.Coupling = &tree.CouplingMetadata{
		BucketSize:            int64(r.opts.BucketSize() / time.Second),
		BucketCount:           count,
		FirstBucketStart:      r.index.BucketStart(first).Unix(),
		MinBursts:             r.opts.MinBursts,
		MinActivityGapMinutes: int(r.opts.MinActivityGap / time.Minute),
		TimeOverlapMinutes:    int(r.opts.TimeOverlap / time.Minute),
		MinRatio:              r.opts.MinRatio,
		MinDistance:           r.opts.MinDistance,
		MaxCommonRoots:        r.opts.MaxCommonRoots,
	}
}
