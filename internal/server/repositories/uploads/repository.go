package uploads

import (
	"context"

	"github.com/dmitrijs2005/recdocs/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByKey(ctx context.Context, key string) (*models.Upload, error)
	MarkCommitted(ctx context.Context, key string) error
}
