package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/samirrijal/miniguide/internal/adapters/postgres"
	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/usecases"
	"github.com/samirrijal/miniguide/internal/pkg/config"
)

const (
	usage         = "usage: migrate <up|down|status|seed <file.json>|gazetteer>"
	migrationsDir = "migrations"
)

// seedPlace is one row of a seed file.
type seedPlace struct {
	Name         string  `json:"name"`
	Region       string  `json:"region"`
	DisplayLabel string  `json:"displayLabel"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Type         string  `json:"type"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load("miniguide-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()
	dsn := cfg.Database.DSN()

	switch cmd := os.Args[1]; cmd {
	case "up", "down", "status":
		runGoose(ctx, cmd, dsn)
	case "seed":
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		db := connect(ctx, dsn)
		defer db.Close()
		seedFile(ctx, db, os.Args[2])
	case "gazetteer":
		db := connect(ctx, dsn)
		defer db.Close()
		entries := usecases.NewGazetteer().Entries()
		if err := postgres.NewPlaceRepo(db).UpsertBatch(ctx, entries); err != nil {
			log.Fatalf("seed gazetteer: %v", err)
		}
		log.Printf("seeded %d gazetteer places", len(entries))
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}

// runGoose applies, rolls back or reports the SQL migrations in ./migrations.
func runGoose(ctx context.Context, cmd, dsn string) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("goose dialect: %v", err)
	}

	switch cmd {
	case "up":
		err = goose.UpContext(ctx, db, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationsDir)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", cmd, err)
	}
	log.Printf("migrate %s done", cmd)
}

func connect(ctx context.Context, dsn string) *postgres.DB {
	db, err := postgres.New(ctx, dsn, 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	return db
}

func seedFile(ctx context.Context, db *postgres.DB, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	var rows []seedPlace
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}

	places := make([]domain.PlaceCandidate, 0, len(rows))
	for i, r := range rows {
		p := domain.PlaceCandidate{
			Name:         r.Name,
			Region:       r.Region,
			DisplayLabel: r.DisplayLabel,
			Coordinate:   domain.GeoPoint{Lat: r.Lat, Lng: r.Lng},
			Type:         r.Type,
		}
		if p.Name == "" || !p.Coordinate.Valid() {
			log.Printf("skip row %d: missing name or invalid coordinate", i)
			continue
		}
		places = append(places, p)
	}

	if err := postgres.NewPlaceRepo(db).UpsertBatch(ctx, places); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seeded %d places from %s", len(places), path)
}
