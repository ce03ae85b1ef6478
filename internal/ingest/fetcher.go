package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/arweave"
	"github.com/arnotify/notifier/internal/infra/storage"
	"github.com/arnotify/notifier/internal/metrics"
)

var (
	// ErrCycleInFlight is returned when a fetch cycle is already running.
	ErrCycleInFlight = errors.New("fetch cycle already in flight")
)

// GatewayClient is the indexer surface the fetcher consumes.
type GatewayClient interface {
	QueryTransactions(ctx context.Context, q arweave.Query) (*arweave.TransactionPage, error)
	FetchData(ctx context.Context, txID string) (string, error)
	ChainHeight(ctx context.Context) (uint64, error)
}

// Coordinator provides optional cross-replica coordination (Redis).
type Coordinator interface {
	AcquireCycleLock(ctx context.Context, processID string, ttl time.Duration) (bool, error)
	ReleaseCycleLock(ctx context.Context, processID string) error
	GetChainHeight(ctx context.Context) (uint64, error)
	SetChainHeight(ctx context.Context, height uint64, ttl time.Duration) error
}

// EventHandler receives each newly accepted event.
type EventHandler interface {
	Handle(ctx context.Context, event *domain.Event)
}

// Config holds fetcher settings for one process.
type Config struct {
	ProcessID     string
	Owners        []string
	Actions       []string
	PageSize      int
	PollInterval  time.Duration
	CycleTimeout  time.Duration
	SkipToCurrent bool
}

// Fetcher pages through the indexer for one process, normalizes entries
// and commits them in reference order.
//
// At most one fetch cycle runs at a time: the in-process guard is an
// atomic flag, and when a Coordinator is configured a Redis lock extends
// the invariant across replicas. A tick that finds a cycle in flight is
// a no-op, not a queued retry.
type Fetcher struct {
	cfg     Config
	client  GatewayClient
	events  storage.EventRepository
	handler EventHandler
	coord   Coordinator // nil when Redis is not configured
	log     *slog.Logger

	running atomic.Bool
	inCycle atomic.Bool
	stop    chan struct{}
}

// NewFetcher creates a fetcher for one process.
func NewFetcher(
	cfg Config,
	client GatewayClient,
	events storage.EventRepository,
	handler EventHandler,
	coord Coordinator,
) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	return &Fetcher{
		cfg:     cfg,
		client:  client,
		events:  events,
		handler: handler,
		coord:   coord,
		log:     slog.Default().With("process", cfg.ProcessID),
		stop:    make(chan struct{}),
	}
}

// Start begins the polling loop.
func (f *Fetcher) Start(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return fmt.Errorf("fetcher already running")
	}
	defer f.running.Store(false)

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.stop:
			return nil
		case <-ticker.C:
			if err := f.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrCycleInFlight) {
					f.log.Debug("Skipping tick, cycle still running")
					continue
				}
				f.log.Error("Fetch cycle failed", "error", err)
			}
		}
	}
}

// Stop stops the polling loop.
func (f *Fetcher) Stop() error {
	if f.running.Load() {
		close(f.stop)
	}
	return nil
}

// RunCycle executes one fetch cycle. Overlapping invocations return
// ErrCycleInFlight.
func (f *Fetcher) RunCycle(ctx context.Context) error {
	if !f.inCycle.CompareAndSwap(false, true) {
		return ErrCycleInFlight
	}
	defer f.inCycle.Store(false)

	if f.coord != nil {
		ok, err := f.coord.AcquireCycleLock(ctx, f.cfg.ProcessID, f.cfg.CycleTimeout+30*time.Second)
		if err != nil {
			f.log.Warn("Cycle lock unavailable, proceeding with local guard", "error", err)
		} else if !ok {
			f.log.Debug("Cycle lock held elsewhere, skipping")
			return nil
		} else {
			defer func() {
				if err := f.coord.ReleaseCycleLock(context.WithoutCancel(ctx), f.cfg.ProcessID); err != nil {
					f.log.Warn("Failed to release cycle lock", "error", err)
				}
			}()
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.cfg.CycleTimeout)
	defer cancel()

	if err := f.runCycle(ctx); err != nil {
		return err
	}

	metrics.FetchCycleDuration.WithLabelValues(f.cfg.ProcessID).Observe(time.Since(start).Seconds())
	return nil
}

func (f *Fetcher) runCycle(ctx context.Context) error {
	watermark, err := f.startingWatermark(ctx)
	if err != nil {
		return err
	}

	latestNonce, haveNonce, err := f.events.LatestNonce(ctx, f.cfg.ProcessID)
	if err != nil {
		return fmt.Errorf("failed to get latest nonce: %w", err)
	}

	// The cursor carries pagination within the cycle; the minimum block
	// stays fixed at the cycle's starting watermark.
	minBlock := watermark
	cursor := ""
	for {
		page, err := f.client.QueryTransactions(ctx, arweave.Query{
			Owners:   f.cfg.Owners,
			Tags:     f.queryTags(),
			MinBlock: minBlock,
			First:    f.cfg.PageSize,
			After:    cursor,
		})
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		metrics.PagesFetched.WithLabelValues(f.cfg.ProcessID).Inc()

		if len(page.Edges) == 0 {
			return nil
		}

		// The remote query does not guarantee stable order for entries in
		// the same block; re-sort by reference so intra-block commit order
		// is deterministic.
		edges := sortPage(page.Edges)

		var pageMax uint64
		for _, edge := range edges {
			event, err := f.ingestEdge(ctx, edge)
			if err != nil {
				if errors.Is(err, ErrMalformedEvent) {
					f.log.Warn("Dropping malformed message", "message", edge.Node.ID, "error", err)
					metrics.EventsSkipped.WithLabelValues(f.cfg.ProcessID, "malformed").Inc()
					continue
				}
				// Upstream or storage failure aborts the cycle; committed
				// entries stay and the next tick resumes from the watermark.
				return err
			}

			if haveNonce && event.Nonce <= latestNonce {
				f.log.Info("Skipping stale or duplicate event",
					"nonce", event.Nonce, "latest", latestNonce)
				metrics.EventsSkipped.WithLabelValues(f.cfg.ProcessID, "stale").Inc()
				continue
			}

			if err := f.events.Upsert(ctx, event); err != nil {
				return fmt.Errorf("failed to store event: %w", err)
			}
			latestNonce, haveNonce = event.Nonce, true
			metrics.EventsStored.WithLabelValues(f.cfg.ProcessID).Inc()

			f.handler.Handle(ctx, event)

			if event.BlockHeight > pageMax {
				pageMax = event.BlockHeight
			}
		}

		if pageMax > watermark {
			watermark = pageMax
			metrics.Watermark.WithLabelValues(f.cfg.ProcessID).Set(float64(watermark))
		}

		if !page.HasNextPage {
			return nil
		}
		cursor = edges[len(edges)-1].Cursor
	}
}

// startingWatermark computes min(max stored block height, live chain
// height). On first run with skip_to_current the live height is used.
func (f *Fetcher) startingWatermark(ctx context.Context) (uint64, error) {
	stored, err := f.events.LatestBlockHeight(ctx, f.cfg.ProcessID)
	if err != nil {
		return 0, fmt.Errorf("failed to get stored block height: %w", err)
	}

	chainHeight, err := f.chainHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain height: %w", err)
	}

	if stored == 0 {
		if f.cfg.SkipToCurrent {
			return chainHeight, nil
		}
		return 0, nil
	}
	if stored > chainHeight {
		return chainHeight, nil
	}
	return stored, nil
}

func (f *Fetcher) chainHeight(ctx context.Context) (uint64, error) {
	if f.coord != nil {
		if cached, err := f.coord.GetChainHeight(ctx); err == nil && cached > 0 {
			return cached, nil
		}
	}

	height, err := f.client.ChainHeight(ctx)
	if err != nil {
		return 0, err
	}

	if f.coord != nil {
		if err := f.coord.SetChainHeight(ctx, height, time.Minute); err != nil {
			f.log.Debug("Failed to cache chain height", "error", err)
		}
	}
	return height, nil
}

// ingestEdge fetches the payload body for one entry and normalizes it.
// Payload retrieval is sequential to preserve reference ordering and to
// avoid overwhelming the origin.
func (f *Fetcher) ingestEdge(ctx context.Context, edge arweave.TransactionEdge) (*domain.Event, error) {
	data, err := f.client.FetchData(ctx, edge.Node.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data for %s: %w", edge.Node.ID, err)
	}

	return Normalize(
		f.cfg.ProcessID,
		edge.Node.ID,
		edge.Node.Recipient,
		edge.Node.Block.Height,
		edge.Node.Tags,
		data,
	)
}

func (f *Fetcher) queryTags() []arweave.TagFilter {
	tags := []arweave.TagFilter{
		{Name: "Data-Protocol", Values: []string{"ao"}},
		{Name: tagFromProcess, Values: []string{f.cfg.ProcessID}},
	}
	if len(f.cfg.Actions) > 0 {
		tags = append(tags, arweave.TagFilter{Name: tagAction, Values: f.cfg.Actions})
	}
	return tags
}

// sortPage orders edges by (block height, reference). Entries without a
// parseable reference keep their relative position at the end of their
// block group.
func sortPage(edges []arweave.TransactionEdge) []arweave.TransactionEdge {
	sorted := make([]arweave.TransactionEdge, len(edges))
	copy(sorted, edges)

	ref := func(e arweave.TransactionEdge) (uint64, bool) {
		for _, t := range e.Node.Tags {
			if t.Name == tagReference || t.Name == tagReferenceOld {
				n, err := strconv.ParseUint(t.Value, 10, 64)
				return n, err == nil
			}
		}
		return 0, false
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := sorted[i].Node.Block.Height, sorted[j].Node.Block.Height
		if hi != hj {
			return hi < hj
		}
		ri, iok := ref(sorted[i])
		rj, jok := ref(sorted[j])
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
	return sorted
}
