package ports

import (
	"context"

	"github.com/samirrijal/miniguide/internal/core/domain"
)

// PlaceRepository persists points of interest used as the database search tier.
type PlaceRepository interface {
	Upsert(ctx context.Context, place *domain.PlaceCandidate) error
	UpsertBatch(ctx context.Context, places []domain.PlaceCandidate) error
	// Search matches name or region case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]domain.PlaceCandidate, error)
	FindNearby(ctx context.Context, near domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PlaceCandidate, error)
}
