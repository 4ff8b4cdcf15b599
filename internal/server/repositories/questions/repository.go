package questions

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type Repository interface {
	ListByCredential(ctx context.Context, credentialID int64) ([]*models.SecurityQuestion, error)
	ListByOwner(ctx context.Context, userID int64) ([]*models.SecurityQuestion, error)
	CreateBatch(ctx context.Context, credentialID int64, qs []*models.SecurityQuestion) error
	DeleteByCredential(ctx context.Context, credentialID int64) error
}
