package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/skyanchor/skyanchor/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreatePositioning(ctx context.Context, rec *models.Positioning) error
	GetPositioning(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Positioning, error)
	ListPositionings(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Positioning, error)
}
