package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/logging"
	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// ArtifactCounter reports how many artifacts were written per kind.
type ArtifactCounter interface {
	Written() map[artifact.Kind]int
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Fetcher crawler.Fetcher
	HTML    crawler.Extractor
	PDF     crawler.Extractor
	Ledger  crawler.DedupLedger
	Hasher  crawler.Hasher
	Clock   crawler.Clock
	// Artifacts is optional; when set its counts are copied into Stats.
	Artifacts ArtifactCounter
	Emitter   progress.Emitter
	Logger    *zap.Logger
	RunID     uuid.UUID
}

// Stats summarizes a finished run.
type Stats struct {
	PagesCrawled   int
	FetchAttempts  int
	SoftBlocks     int
	DuplicatePages int
	Failures       int
	Artifacts      map[artifact.Kind]int
}

// Scheduler crawls breadth-first from the configured start URLs.
type Scheduler struct {
	cfg      crawler.Config
	deps     Deps
	detector *crawler.SoftBlockDetector
	logger   *zap.Logger
	emitter  progress.Emitter
}

// New validates cfg and deps and builds a Scheduler.
func New(cfg crawler.Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawl config: %w", err)
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.HTML == nil || deps.PDF == nil:
		return nil, errors.New("html and pdf extractors are required")
	case deps.Ledger == nil || deps.Hasher == nil:
		return nil, errors.New("ledger and hasher are required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	logger := logging.OrNop(deps.Logger).With(zap.String("topic", cfg.Topic))
	return &Scheduler{
		cfg:      cfg,
		deps:     deps,
		detector: crawler.NewSoftBlockDetector(cfg.SoftBlockPhrases),
		logger:   logger,
		emitter:  progress.OrDiscard(deps.Emitter),
	}, nil
}

// Run drains the frontier until it is empty or MaxPages pages were crawled.
// A canceled context stops the loop at the next iteration boundary or
// pause; the ledger is persisted and ctx.Err() is returned.
func (s *Scheduler) Run(ctx context.Context) (Stats, error) {
	start := s.deps.Clock.Now()
	frontier := NewFrontier(s.cfg.StartURLs...)
	stats := Stats{}
	s.emit(progress.Event{Stage: progress.StageRunStart, Note: fmt.Sprintf("%d start urls", len(s.cfg.StartURLs))})
	s.logger.Info("crawl started",
		zap.Strings("start_urls", s.cfg.StartURLs),
		zap.Int("max_depth", s.cfg.MaxDepth),
		zap.Int("max_pages", s.cfg.MaxPages),
	)

	var runErr error
	for frontier.Len() > 0 && stats.PagesCrawled < s.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		entry, _ := frontier.Pop()
		if entry.Depth > s.cfg.MaxDepth || !frontier.Visit(entry) {
			continue
		}
		s.crawl(ctx, frontier, entry, &stats)
		if err := s.deps.Ledger.Persist(ctx); err != nil {
			s.logger.Warn("persist ledger failed", zap.Error(err))
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	return s.finish(ctx, start, stats, runErr)
}

func (s *Scheduler) finish(ctx context.Context, start time.Time, stats Stats, runErr error) (Stats, error) {
	if err := s.deps.Ledger.Persist(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("final ledger persist failed", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("persist ledger: %w", err)
		}
	}
	if s.deps.Artifacts != nil {
		stats.Artifacts = s.deps.Artifacts.Written()
	}
	dur := s.deps.Clock.Now().Sub(start)
	fields := []zap.Field{
		zap.Int("pages_crawled", stats.PagesCrawled),
		zap.Int("fetch_attempts", stats.FetchAttempts),
		zap.Int("soft_blocks", stats.SoftBlocks),
		zap.Int("duplicate_pages", stats.DuplicatePages),
		zap.Int("failures", stats.Failures),
		zap.Duration("duration", dur),
	}
	if runErr != nil {
		s.emit(progress.Event{Stage: progress.StageRunError, Dur: dur, Note: runErr.Error()})
		s.logger.Warn("crawl stopped", append(fields, zap.Error(runErr))...)
		return stats, runErr
	}
	s.emit(progress.Event{Stage: progress.StageRunDone, Dur: dur, Note: fmt.Sprintf("%d pages", stats.PagesCrawled)})
	s.logger.Info("crawl finished", fields...)
	return stats, nil
}

// crawl performs one fetch attempt for entry and the pause that follows it.
func (s *Scheduler) crawl(ctx context.Context, frontier *Frontier, entry crawler.FrontierEntry, stats *Stats) {
	log := s.logger.With(zap.String("url", entry.URL), zap.Int("depth", entry.Depth), zap.Int("attempt", entry.Attempt))
	resp, err := s.deps.Fetcher.Fetch(ctx, entry.URL)
	stats.FetchAttempts++
	outcome := s.detector.Classify(resp, err)
	crawler.ObserveOutcome(outcome)
	s.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		URL:         entry.URL,
		Depth:       entry.Depth,
		Attempt:     entry.Attempt,
		StatusCode:  resp.StatusCode,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Outcome:     outcome.String(),
		Bytes:       int64(len(resp.Body)),
		Dur:         resp.Duration,
	})

	switch outcome {
	case crawler.OutcomeTransportError:
		stats.Failures++
		log.Warn("fetch failed", zap.Error(err))
	case crawler.OutcomeHTTPError:
		stats.Failures++
		log.Warn("non-200 response", zap.Int("status", resp.StatusCode))
	case crawler.OutcomeSoftBlock:
		stats.SoftBlocks++
		if !s.softBlocked(ctx, frontier, entry, log) {
			return
		}
	case crawler.OutcomeSuccess:
		stats.PagesCrawled++
		s.process(ctx, frontier, entry, resp, stats, log)
	}

	if err := s.deps.Clock.Sleep(ctx, s.cfg.RequestDelay); err != nil {
		log.Debug("request delay interrupted", zap.Error(err))
	}
}

// softBlocked waits out the retry delay and re-enqueues entry at the tail.
// It returns false when the pause was interrupted.
func (s *Scheduler) softBlocked(ctx context.Context, frontier *Frontier, entry crawler.FrontierEntry, log *zap.Logger) bool {
	s.emit(progress.Event{
		Stage:   progress.StageSoftBlock,
		URL:     entry.URL,
		Depth:   entry.Depth,
		Attempt: entry.Attempt,
	})
	if s.cfg.MaxSoftBlockRetries > 0 && entry.Attempt >= s.cfg.MaxSoftBlockRetries {
		crawler.SoftBlockDrops.Inc()
		log.Warn("soft-block retries exhausted, dropping url", zap.Int("max_retries", s.cfg.MaxSoftBlockRetries))
		return true
	}
	log.Warn("soft block detected, retrying later", zap.Duration("retry_delay", s.cfg.SoftBlockRetryDelay))
	if err := s.deps.Clock.Sleep(ctx, s.cfg.SoftBlockRetryDelay); err != nil {
		log.Debug("soft-block pause interrupted", zap.Error(err))
		return false
	}
	frontier.Push(crawler.FrontierEntry{URL: entry.URL, Depth: entry.Depth, Attempt: entry.Attempt + 1})
	return true
}

// process dedups the page body, routes it to an extractor and enqueues links.
func (s *Scheduler) process(
	ctx context.Context,
	frontier *Frontier,
	entry crawler.FrontierEntry,
	resp crawler.FetchResponse,
	stats *Stats,
	log *zap.Logger,
) {
	route := crawler.RouteFor(entry.URL)
	h := s.deps.Hasher.Hash(resp.Body)
	if s.deps.Ledger.Contains(h) {
		stats.DuplicatePages++
		crawler.DuplicateContent.WithLabelValues("page").Inc()
		s.emit(progress.Event{Stage: progress.StageDuplicate, URL: entry.URL, Depth: entry.Depth, Kind: "page"})
		log.Debug("skipping duplicate content")
	} else {
		if resp.Truncated {
			// The digest of a cut body would hide the full document on later runs.
			log.Warn("body reached the fetch size limit, leaving it out of the ledger",
				zap.Int("bytes", len(resp.Body)))
		} else {
			s.deps.Ledger.Add(h)
		}
		extractor := s.deps.HTML
		if route == crawler.RoutePDF {
			extractor = s.deps.PDF
		}
		if err := extractor.Extract(ctx, entry.URL, resp.Body); err != nil {
			log.Warn("extraction failed", zap.String("route", string(route)), zap.Error(err))
		}
	}

	if route != crawler.RouteHTML || entry.Depth+1 > s.cfg.MaxDepth {
		return
	}
	links, err := crawler.ExtractLinks(entry.URL, resp.Body, entry.Depth, s.cfg.AllowedDomains)
	if err != nil {
		log.Warn("link extraction failed", zap.Error(err))
		return
	}
	queued := 0
	for _, link := range links {
		if frontier.Visited(link.URL) {
			continue
		}
		frontier.Push(link)
		queued++
	}
	log.Debug("links queued", zap.Int("found", len(links)), zap.Int("queued", queued))
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(s.deps.RunID)
	evt.TS = s.deps.Clock.Now()
	evt.Topic = s.cfg.Topic
	s.emitter.Emit(evt)
}
