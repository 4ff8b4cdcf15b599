package credentials

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

// Repository persists credentials. Lookups suffixed ForOwner and every
// mutation are scoped by owner in the same statement.
type Repository interface {
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)
	Count(ctx context.Context, userID int64, search string) (int, error)
	NameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error)
	List(ctx context.Context, userID int64, search string, limit, offset int) ([]*models.Credential, error)
	ListAll(ctx context.Context, userID int64) ([]*models.Credential, error)
	GetByID(ctx context.Context, id int64) (*models.Credential, error)
	GetByIDForOwner(ctx context.Context, id, userID int64) (*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) (*models.Credential, error)
	Delete(ctx context.Context, id, userID int64) error
}
