package transfers

import (
	"context"

	"github.com/dmitrijs2005/gophxfer/internal/server/models"
)

type Repository interface {
	Save(ctx context.Context, t *models.Transfer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Transfer, error)
}
