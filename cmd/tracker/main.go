package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/miniguide/internal/adapters/geoclue"
	natsadapter "github.com/samirrijal/miniguide/internal/adapters/nats"
	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/pkg/config"
	"github.com/samirrijal/miniguide/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("miniguide-tracker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	device := cfg.Tracker.Device
	if len(os.Args) > 1 {
		device = os.Args[1]
	}
	if device == "" {
		log.Fatal("usage: tracker <device-id> (or set MINIGUIDE_TRACKER_DEVICE)")
	}
	if _, err := natsadapter.Subject(natsadapter.PositionSubjectPrefix, device); err != nil {
		log.Fatalf("device: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	feed := geoclue.NewFeed(geoclue.Options{
		DesktopID: cfg.Tracker.DesktopID,
		Accuracy:  cfg.Tracker.Accuracy,
		Logger:    slog.Default(),
	})

	logger := slog.With("device", device)
	cancel, err := feed.Subscribe(ctx, func(p domain.Position) {
		if err := pub.PublishPosition(ctx, device, p); err != nil {
			logger.Warn("publish position failed", "error", err)
			return
		}
		logger.Debug("position published", "lat", p.Lat, "lng", p.Lng, "accuracy", p.Accuracy)
	})
	if err != nil {
		log.Fatalf("geoclue: %v", err)
	}

	logger.Info("tracker started", "desktop_id", cfg.Tracker.DesktopID)
	<-ctx.Done()
	cancel()
	logger.Info("tracker stopped")
}
