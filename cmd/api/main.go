package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/miniguide/internal/adapters/http"
	"github.com/samirrijal/miniguide/internal/adapters/memory"
	natsadapter "github.com/samirrijal/miniguide/internal/adapters/nats"
	"github.com/samirrijal/miniguide/internal/adapters/nominatim"
	"github.com/samirrijal/miniguide/internal/adapters/photon"
	"github.com/samirrijal/miniguide/internal/adapters/places"
	"github.com/samirrijal/miniguide/internal/adapters/postgres"
	"github.com/samirrijal/miniguide/internal/adapters/routing"
	"github.com/samirrijal/miniguide/internal/adapters/sqlite"
	"github.com/samirrijal/miniguide/internal/adapters/valkey"
	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/core/usecases"
	"github.com/samirrijal/miniguide/internal/pkg/config"
	"github.com/samirrijal/miniguide/internal/pkg/logging"
	"github.com/samirrijal/miniguide/internal/pkg/telemetry"
)

// cacheBackend is a cache the readiness probe can ping.
type cacheBackend interface {
	ports.CacheService
	http.Pinger
}

// openCache builds the configured cache. A nil backend means caching is off.
func openCache(ctx context.Context, cfg config.CacheConfig, vk config.ValkeyConfig) (cacheBackend, func(), error) {
	switch cfg.Driver {
	case "memory":
		c, err := memory.New(cfg.Size, time.Duration(cfg.CleanupInterval)*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "valkey":
		c, err := valkey.New(vk.Addr, "miniguide:")
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "sqlite":
		c, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if every := time.Duration(cfg.CleanupInterval) * time.Second; every > 0 {
			go pruneLoop(ctx, c, every)
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

// pruneLoop drops expired sqlite rows until ctx ends.
func pruneLoop(ctx context.Context, c *sqlite.Cache, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Prune(ctx)
			if err != nil {
				slog.Warn("sqlite cache prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("sqlite cache pruned", "rows", n)
			}
		}
	}
}

func main() {
	cfg, err := config.Load("miniguide-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	deps := &http.Dependencies{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}

	// Cache
	var cache ports.CacheService
	backend, closeCache, err := openCache(ctx, cfg.Cache, cfg.Valkey)
	if err != nil {
		slog.Warn("cache unavailable, continuing without", "driver", cfg.Cache.Driver, "error", err)
	} else if backend != nil {
		defer closeCache()
		cache = backend
		deps.Cache = backend
		slog.Info("cache ready", "driver", cfg.Cache.Driver)
	}

	// Database (optional POI tier)
	var placeRepo ports.PlaceRepository
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), 10)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		placeRepo = postgres.NewPlaceRepo(db)
		deps.DB = db
	}

	// NATS
	var publisher ports.EventPublisher
	var feeds func(device string) ports.PositionFeed
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = pub.Conn()
			feeds = func(device string) ports.PositionFeed {
				return natsadapter.NewPositionFeed(pub.Conn(), device, slog.Default())
			}
		}
	}

	// Geocoders
	geoTimeout := time.Duration(cfg.Geocoder.Timeout) * time.Second
	live := photon.NewClient(cfg.Geocoder.PhotonURL, photon.Options{
		BBox:      cfg.Geocoder.PhotonBBox,
		Lang:      cfg.Geocoder.PhotonLang,
		Country:   cfg.Geocoder.Country,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   geoTimeout,
	})
	fallback := nominatim.NewClient(nominatim.Options{
		Server:  cfg.Geocoder.NominatimURL,
		Rate:    cfg.Geocoder.NominatimRate,
		Country: cfg.Geocoder.Country,
		Logger:  slog.Default(),
	})

	// Routing
	router := routing.NewClient(cfg.Routing.BaseURL, routing.Options{
		Style:     cfg.Routing.Style,
		Profile:   cfg.Routing.Profile,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   time.Duration(cfg.Routing.Timeout) * time.Second,
	})

	// Use cases
	gazetteer := usecases.NewGazetteer()
	deps.Places = usecases.NewPlaceService(gazetteer, usecases.PlaceSources{
		Live:     live,
		Fallback: fallback,
		Places:   placeRepo,
	}, cache, cfg.Cache.SearchTTL, slog.Default())
	deps.Routes = usecases.NewRouteService(router, cache, cfg.Cache.RouteTTL)

	// Sessions search the configured places endpoint, or this server's own
	// ranked search when none is set.
	var sessionSearch ports.GeoSource = ports.GeoSourceFunc(func(ctx context.Context, text string, limit int) ([]domain.PlaceCandidate, error) {
		return deps.Places.Search(ctx, text, limit)
	})
	if cfg.Search.PlacesURL != "" {
		sessionSearch = places.NewClient(cfg.Search.PlacesURL, geoTimeout)
	}
	deps.Sessions = http.SessionConfig{
		Search:         sessionSearch,
		Fallback:       gazetteer,
		Popular:        gazetteer.Popular(),
		Routing:        deps.Routes,
		Debounce:       cfg.Search.Debounce(),
		MinQueryLength: cfg.Search.MinQueryLength,
		Limit:          cfg.Search.Limit,
		RouteTimeout:   time.Duration(cfg.Routing.Timeout) * time.Second,
		Feeds:          feeds,
		Publisher:      publisher,
		Logger:         slog.Default(),
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "MiniGuide API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
