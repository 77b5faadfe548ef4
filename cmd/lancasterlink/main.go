package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	lancasterlink "github.com/cuustard/LancasterLink"
	"github.com/cuustard/LancasterLink/config"
	"github.com/cuustard/LancasterLink/disruption"
	"github.com/cuustard/LancasterLink/feed"
	"github.com/cuustard/LancasterLink/internal/logger"
	"github.com/cuustard/LancasterLink/metrics"
	"github.com/cuustard/LancasterLink/routing"
	"github.com/cuustard/LancasterLink/snapshot"
	"github.com/cuustard/LancasterLink/store"
	"github.com/cuustard/LancasterLink/tracking"
	"github.com/cuustard/LancasterLink/transit"
)

// multiMonitor fans poll outcomes out to the tracking store and the
// metrics collector.
type multiMonitor []feed.SourceMonitor

func (m multiMonitor) RecordPoll(source string, ok bool, at time.Time) {
	for _, mon := range m {
		mon.RecordPoll(source, ok, at)
	}
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration")
	reloadEvery := flag.Duration("reload", 6*time.Hour, "reference data reload interval")
	flag.Parse()

	if err := run(*configPath, *reloadEvery); err != nil {
		fmt.Fprintf(os.Stderr, "lancasterlink: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, reloadEvery time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(logger.Options{
		Level:    cfg.Logging.Level,
		Console:  cfg.Logging.Console,
		FilePath: cfg.Logging.FilePath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer db.Close()

	dataset, err := db.LoadDataset(ctx)
	if err != nil {
		return err
	}
	graph, err := transit.BuildGraph(dataset)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	tracker := disruption.NewTracker(disruption.SeverityMinutes{
		Minor:    orDefault(cfg.Routing.MinorPenaltyMin, 5),
		Moderate: orDefault(cfg.Routing.ModeratePenaltyMin, 12),
		Severe:   orDefault(cfg.Routing.SeverePenaltyMin, 25),
	}, log)
	liveStore := tracking.NewStore(cfg.Live.FreshnessWindow, log)

	pub := snapshot.NewPublisher(graph, tracker, liveStore, cfg.Live.PublishInterval, log)
	pub.OnPublish = func(s *snapshot.Snapshot) {
		collector.SnapshotsPublished.Inc()
		collector.SnapshotVersion.Set(float64(s.Version))
		collector.GraphStops.Set(float64(s.Graph.StopCount()))
		collector.GraphTrips.Set(float64(s.Graph.TripCount()))
		unavailable := 0
		for _, src := range s.Live.Sources() {
			if !src.Available {
				unavailable++
			}
		}
		collector.SourcesUnavailable.Set(float64(unavailable))
	}
	go pub.Run(ctx)
	go reloadLoop(ctx, db, pub, reloadEvery, log)

	norm := feed.NewNormalizer(pub, liveStore, tracker, log)
	norm.Monitor = collector
	monitor := multiMonitor{liveStore, collector}
	if err := startFeeds(ctx, cfg, norm, liveStore, monitor, log); err != nil {
		return err
	}

	engine := routing.NewEngine(routing.Options{
		MinTransferMin:    int(cfg.Routing.MinTransfer.Minutes()),
		HubMinTransferMin: int(cfg.Routing.HubMinTransfer.Minutes()),
		HubScoreThreshold: cfg.Routing.HubScoreThreshold,
		HubMaxBonusMin:    cfg.Routing.HubMaxBonusMin,
		MaxResults:        cfg.Routing.MaxResults,
		WaitPenaltyFactor: cfg.Routing.WaitPenaltyFactor,
		QueryTimeout:      cfg.Routing.QueryTimeout,
	}, log)

	srv := lancasterlink.NewServer(cfg.Server, pub, engine, collector, log)
	errc := srv.Start()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startFeeds launches one poller per HTTP feed and one subscription per
// NATS feed. Feed faults degrade the source, they never abort startup.
func startFeeds(ctx context.Context, cfg config.AppConfig, norm *feed.Normalizer, liveStore *tracking.Store, monitor feed.SourceMonitor, log zerolog.Logger) error {
	var nc *nats.Conn
	for _, fc := range cfg.Feeds {
		liveStore.RegisterSource(fc.Name, fc.PollInterval)
		switch {
		case fc.URL != "":
			p := feed.NewPoller(fc.Name, fc.URL, fc.PollInterval, fc.RatePerMin, norm, monitor, log)
			go p.Run(ctx)
		case fc.NATSSubject != "":
			if nc == nil {
				var err error
				nc, err = nats.Connect(cfg.NATS.URL, nats.Name("lancasterlink"))
				if err != nil {
					return fmt.Errorf("nats: %w", err)
				}
				go func() {
					<-ctx.Done()
					nc.Drain()
				}()
			}
			if _, err := feed.SubscribeNATS(nc, fc.NATSSubject, fc.Name, norm, monitor, log); err != nil {
				return fmt.Errorf("nats subscribe %s: %w", fc.NATSSubject, err)
			}
		default:
			log.Warn().Str("source", fc.Name).Msg("feed has neither url nor nats subject, skipping")
		}
	}
	return nil
}

// reloadLoop rebuilds the graph from reference data on a slow cadence.
// A failed build keeps the previous graph version serving.
func reloadLoop(ctx context.Context, db *store.Store, pub *snapshot.Publisher, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dataset, err := db.LoadDataset(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reference data reload failed")
				continue
			}
			graph, err := transit.BuildGraph(dataset)
			if err != nil {
				log.Error().Err(err).Msg("graph rebuild rejected, keeping previous version")
				continue
			}
			pub.SwapGraph(graph, now)
		}
	}
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
