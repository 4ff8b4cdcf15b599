package loginhistory

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID int64, ipAddress string) error
	ListRecent(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error)
}
