package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

const upsertPlaceSQL = `
	INSERT INTO places (name, region, display_label, place_type, location)
	VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)
	ON CONFLICT (name_key) DO UPDATE
	SET display_label = EXCLUDED.display_label,
	    place_type = EXCLUDED.place_type,
	    location = EXCLUDED.location,
	    updated_at = now()
`

// PlaceRepo implements ports.PlaceRepository with pgx.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

// Upsert inserts or updates a single place keyed on lower(name)|lower(region).
func (r *PlaceRepo) Upsert(ctx context.Context, p *domain.PlaceCandidate) error {
	_, err := r.db.Pool.Exec(ctx, upsertPlaceSQL, upsertArgs(*p)...)
	return err
}

// UpsertBatch inserts many places using pgx.Batch.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.PlaceCandidate) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(upsertPlaceSQL, upsertArgs(p)...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec %q: %w", places[i].Name, err)
		}
	}
	return nil
}

func upsertArgs(p domain.PlaceCandidate) []any {
	label := p.DisplayLabel
	if label == "" {
		label = p.Name
	}
	return []any{p.Name, p.Region, label, p.Type, p.Coordinate.Lng, p.Coordinate.Lat}
}

// Search matches name or region with ILIKE, prefix hits on the name first.
func (r *PlaceRepo) Search(ctx context.Context, query string, limit int) ([]domain.PlaceCandidate, error) {
	q := escapeLike(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, region, display_label, COALESCE(place_type, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lng
		FROM places
		WHERE name ILIKE '%' || $1::text || '%' OR region ILIKE '%' || $1::text || '%'
		ORDER BY (name ILIKE $1::text || '%') DESC, similarity(name, $1::text) DESC, length(name)
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, err
	}
	return scanPlaces(rows)
}

// FindNearby returns places within radiusMeters using PostGIS ST_DWithin.
func (r *PlaceRepo) FindNearby(ctx context.Context, near domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PlaceCandidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, region, display_label, COALESCE(place_type, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lng
		FROM places
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
		LIMIT $4
	`, near.Lng, near.Lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	return scanPlaces(rows)
}

func scanPlaces(rows pgx.Rows) ([]domain.PlaceCandidate, error) {
	defer rows.Close()

	var places []domain.PlaceCandidate
	for rows.Next() {
		var p domain.PlaceCandidate
		if err := rows.Scan(
			&p.Name, &p.Region, &p.DisplayLabel, &p.Type,
			&p.Coordinate.Lat, &p.Coordinate.Lng,
		); err != nil {
			return nil, err
		}
		p.Source = domain.SourceLocalFallback
		places = append(places, p)
	}
	return places, rows.Err()
}

// escapeLike escapes ILIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
