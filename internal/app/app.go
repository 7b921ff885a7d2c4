// Package app initializes and holds the long-lived services of one crawl run,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/api"
	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/clock/system"
	"github.com/JakeFAU/topic-crawler/internal/config"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/topic-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/topic-crawler/internal/hash/md5"
	idgen "github.com/JakeFAU/topic-crawler/internal/id/uuid"
	"github.com/JakeFAU/topic-crawler/internal/logging"
	"github.com/JakeFAU/topic-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/topic-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/topic-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/topic-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/topic-crawler/internal/scheduler"
	gcsstorage "github.com/JakeFAU/topic-crawler/internal/storage/gcs"
	"github.com/JakeFAU/topic-crawler/internal/store"
	pgstore "github.com/JakeFAU/topic-crawler/internal/store/postgres"
)

// Options carries process-level collaborators. Zero values select the
// production defaults.
type Options struct {
	// FS defaults to the OS filesystem.
	FS afero.Fs
	// Registerer receives the progress metrics; defaults to the global registry.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
	Overrides  config.Overrides
	// Reset clears the topic's persisted state before it is opened.
	Reset bool
	Clock crawler.Clock
	// Mirror and Publisher replace the GCS and Pub/Sub clients built from config.
	Mirror    artifact.Mirror
	Publisher artifact.Publisher
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = afero.NewOsFs()
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Clock == nil {
		o.Clock = system.New()
	}
	return o
}

// App holds every service a crawl of one topic needs. It is built once by
// New and torn down by Close.
type App struct {
	cfg      config.Config
	crawlCfg crawler.Config
	logger   *zap.Logger
	runID    uuid.UUID

	stores    *topicStores
	writer    *artifact.Writer
	scheduler *scheduler.Scheduler
	hub       *progress.Hub
	status    *api.RunStatus

	storageClient   *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
}

// New builds the crawl for topic (empty means default_topic). Only
// configuration and initialization failures are returned.
func New(ctx context.Context, cfg config.Config, topic string, opts Options) (*App, error) {
	opts = opts.withDefaults()
	crawlCfg, err := cfg.Crawl(topic, opts.Overrides)
	if err != nil {
		return nil, err
	}
	_, topicCfg, err := cfg.Topic(crawlCfg.Topic)
	if err != nil {
		return nil, err
	}
	runID, err := idgen.New().NewRunID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger := opts.Logger.With(zap.String("topic", crawlCfg.Topic), zap.String("run_id", runID.String()))
	app := &App{
		cfg:      cfg,
		crawlCfg: crawlCfg,
		logger:   logger,
		runID:    runID,
	}
	logger.Info("building crawl dependencies", zap.String("topic_dir", topicCfg.TopicDir))

	app.stores, err = openStores(ctx, cfg.Store, crawlCfg.Topic, store.Layout{Root: topicCfg.TopicDir}, opts.FS, opts.Reset, logger)
	if err != nil {
		return nil, err
	}

	if err := app.build(ctx, opts); err != nil {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	a.status = api.NewRunStatus()
	promSink, err := progresssinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")},
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
		a.status,
	)

	mirror := opts.Mirror
	if mirror == nil {
		if mirror, err = a.setupMirror(ctx); err != nil {
			return err
		}
	}
	publisher := opts.Publisher
	if publisher == nil {
		if publisher, err = a.setupPublisher(ctx); err != nil {
			return err
		}
	}

	a.writer, err = artifact.NewWriter(artifact.WriterConfig{
		FS:           a.stores.fs,
		DocumentsDir: a.stores.layout.DocumentsDir(),
		Provenance:   a.stores.provenance,
		Context:      a.stores.context,
		Topic:        a.crawlCfg.Topic,
		RunID:        a.runID,
		Mirror:       mirror,
		Publisher:    publisher,
		Emitter:      a.hub,
		Logger:       a.logger.Named("artifact"),
		Now:          opts.Clock.Now,
	})
	if err != nil {
		return fmt.Errorf("artifact writer: %w", err)
	}

	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Timeout:       a.cfg.Crawler.RequestTimeout,
		MaxBodyBytes:  a.cfg.Crawler.MaxBodyBytes,
	})
	var imageFetcher crawler.Fetcher = pageFetcher
	if rps := a.cfg.Crawler.ImageRequestsPerSecond; rps > 0 {
		imageFetcher = ratelimit.NewFetcher(pageFetcher, ratelimit.New(ratelimit.Config{RPS: rps, Burst: 1}))
		a.logger.Debug("image fetches rate limited", zap.Float64("rps", rps))
	}

	hasher := md5.New()
	extractOpts := extract.Options{
		Sink:          a.writer,
		Ledger:        a.stores.ledger,
		Hasher:        hasher,
		MinImageBytes: a.crawlCfg.MinImageBytes,
		Logger:        a.logger.Named("extract"),
		Emitter:       a.hub,
		RunID:         a.runID,
		Topic:         a.crawlCfg.Topic,
		Now:           opts.Clock.Now,
	}
	htmlExt, err := extract.NewHTMLExtractor(extractOpts, extract.HTMLConfig{
		NonContentPhrases:    a.crawlCfg.NonContentPhrases,
		BlacklistedImageURLs: a.crawlCfg.BlacklistedImageURLs,
	}, imageFetcher)
	if err != nil {
		return fmt.Errorf("html extractor: %w", err)
	}
	pdfExt, err := extract.NewPDFExtractor(extractOpts, nil, nil)
	if err != nil {
		return fmt.Errorf("pdf extractor: %w", err)
	}

	a.scheduler, err = scheduler.New(a.crawlCfg, scheduler.Deps{
		Fetcher:   pageFetcher,
		HTML:      htmlExt,
		PDF:       pdfExt,
		Ledger:    a.stores.ledger,
		Hasher:    hasher,
		Clock:     opts.Clock,
		Artifacts: a.writer,
		Emitter:   a.hub,
		Logger:    a.logger.Named("scheduler"),
		RunID:     a.runID,
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

func (a *App) setupMirror(ctx context.Context) (artifact.Mirror, error) {
	bucket := a.cfg.Mirror.GCSBucket
	if bucket == "" {
		a.logger.Debug("no GCS bucket configured, mirror disabled")
		return nil, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	a.storageClient = client
	blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("gcs blob store init failed: %w", err)
	}
	a.logger.Info("mirroring artifacts to GCS", zap.String("bucket", bucket))
	return blobs, nil
}

func (a *App) setupPublisher(ctx context.Context) (artifact.Publisher, error) {
	pc := a.cfg.Publisher
	if pc.ProjectID == "" || pc.TopicName == "" {
		a.logger.Debug("no Pub/Sub topic configured, notifications disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, pc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(pc.TopicName)
	pub, err := gcppublisher.New(a.pubsubPublisher)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", pc.ProjectID),
		zap.String("topic", pc.TopicName),
	)
	return pub, nil
}

// RunID identifies this crawl in logs, events and notifications.
func (a *App) RunID() uuid.UUID { return a.runID }

// Topic is the resolved topic name.
func (a *App) Topic() string { return a.crawlCfg.Topic }

// Status exposes the live run snapshot served on /api/run.
func (a *App) Status() *api.RunStatus { return a.status }

// Run crawls the topic. When metrics.addr is set the status server runs
// alongside the crawl and stops with it.
func (a *App) Run(ctx context.Context) (scheduler.Stats, error) {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		srv := api.NewServer(a.status, a.logger.Named("api"))
		go func() {
			if err := srv.Serve(srvCtx, addr); err != nil {
				a.logger.Error("status server error", zap.Error(err))
			}
		}()
	}
	return a.scheduler.Run(ctx)
}

// Close flushes progress sinks and releases clients and pools.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	errs = append(errs, a.closeInfrastructure(ctx)...)
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure(ctx context.Context) []error {
	var errs []error
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage client: %w", err))
		}
	}
	if a.stores != nil {
		if err := a.stores.persist(ctx); err != nil {
			errs = append(errs, err)
		}
		a.stores.close()
	}
	return errs
}

// ResetTopic clears the persisted state of topic without crawling it.
func ResetTopic(ctx context.Context, cfg config.Config, topic string, opts Options) error {
	opts = opts.withDefaults()
	name, t, err := cfg.Topic(topic)
	if err != nil {
		return err
	}
	stores, err := openStores(ctx, cfg.Store, name, store.Layout{Root: t.TopicDir}, opts.FS, true, opts.Logger)
	if err != nil {
		return err
	}
	stores.close()
	return nil
}

// topicStores groups the persisted state of one topic.
type topicStores struct {
	fs         afero.Fs
	layout     store.Layout
	provenance store.Store[store.ProvenanceRecord]
	context    store.Store[store.ContextRecord]
	ledger     *store.Ledger
	pool       *pgxpool.Pool
}

func openStores(
	ctx context.Context,
	sc config.StoreConfig,
	topic string,
	layout store.Layout,
	afs afero.Fs,
	reset bool,
	logger *zap.Logger,
) (*topicStores, error) {
	if reset {
		if err := layout.Reset(afs); err != nil {
			return nil, fmt.Errorf("reset %s: %w", layout.Root, err)
		}
		logger.Info("topic state reset", zap.String("topic_dir", layout.Root))
	} else if err := layout.Ensure(afs); err != nil {
		return nil, err
	}

	s := &topicStores{fs: afs, layout: layout}
	var err error
	s.ledger, err = store.OpenLedger(afs, layout.LedgerPath())
	if err != nil {
		return nil, err
	}

	switch sc.Backend {
	case config.StoreBackendPostgres:
		s.pool, err = pgstore.NewPool(ctx, pgstore.Config{DSN: sc.DSN, Table: sc.Table, MaxConns: sc.MaxConns})
		if err != nil {
			return nil, err
		}
		prov, err := pgstore.New[store.ProvenanceRecord](s.pool, sc.Table, topic+"/provenance")
		if err != nil {
			s.close()
			return nil, err
		}
		cx, err := pgstore.New[store.ContextRecord](s.pool, sc.Table, topic+"/context")
		if err != nil {
			s.close()
			return nil, err
		}
		s.provenance, s.context = prov, cx
		if reset {
			if err := errors.Join(prov.Reset(ctx), cx.Reset(ctx)); err != nil {
				s.close()
				return nil, fmt.Errorf("reset postgres records: %w", err)
			}
		}
		logger.Info("using postgres record store", zap.String("table", sc.Table))
	default:
		prov, err := store.OpenYAMLFile[store.ProvenanceRecord](afs, layout.URLMappingPath(), store.ProvenanceRootKey)
		if err != nil {
			return nil, err
		}
		cx, err := store.OpenYAMLFile[store.ContextRecord](afs, layout.ContextPath(), store.ContextRootKey)
		if err != nil {
			return nil, err
		}
		s.provenance, s.context = prov, cx
		logger.Debug("using file record store",
			zap.String("url_mapping", layout.URLMappingPath()),
			zap.String("context", layout.ContextPath()))
	}
	return s, nil
}

func (s *topicStores) persist(ctx context.Context) error {
	if err := errors.Join(s.ledger.Persist(ctx), s.provenance.Persist(ctx), s.context.Persist(ctx)); err != nil {
		return fmt.Errorf("persist topic state: %w", err)
	}
	return nil
}

func (s *topicStores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
