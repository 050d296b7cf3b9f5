package applications

import (
	"context"

	"github.com/dmitrijs2005/recdocs/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, code string) (*models.Application, error)
	GetForUpdate(ctx context.Context, code string) (*models.Application, error)
	Save(ctx context.Context, app *models.Application) error
}
