// Package httpapi exposes the vault over HTTP with gin. Every route except
// login, logout, metrics and health requires a session cookie.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/passgen"
	"github.com/dmitrijs2005/passvault/internal/server/images"
	"github.com/dmitrijs2005/passvault/internal/server/metrics"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

type UserService interface {
	Login(ctx context.Context, username, password, ip string) (*services.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.Profile, error)
	CreateUser(ctx context.Context, in services.NewUser) (string, error)
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, in services.ProfileUpdate) (*models.Profile, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	FetchLoginHistory(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error)
}

type CredentialService interface {
	List(ctx context.Context, ownerID int64, f models.ListFilter) (*models.CredentialPage, error)
	Get(ctx context.Context, id, ownerID int64) (*models.Credential, error)
	Create(ctx context.Context, ownerID int64, in models.CreateCredential) (*models.Credential, error)
	Update(ctx context.Context, id, ownerID int64, in models.UpdateCredential) (*models.Credential, error)
	Delete(ctx context.Context, id, ownerID int64) error
	DeleteBulk(ctx context.Context, ids []int64, ownerID int64) (int, error)
	GetSecurityQuestions(ctx context.Context, id, ownerID int64) ([]models.QuestionInput, error)
	RevealSecret(ctx context.Context, id, ownerID int64) (string, error)
	ImagePath(ctx context.Context, id, ownerID int64) (string, error)
	ExportAll(ctx context.Context, ownerID int64) ([]*models.ExportedCredential, error)
	GeneratePassword(o passgen.Options) (string, error)
}

// Pinger reports whether the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	// SecureCookie marks the session cookie Secure. Set in production.
	SecureCookie  bool
	TokenValidity time.Duration
	MaxImageSize  int64
	// TrustedProxies may set X-Forwarded-For. Empty means the client IP is
	// the TCP peer address.
	TrustedProxies []string
}

type Handler struct {
	users   UserService
	creds   CredentialService
	images  images.Store
	metrics *metrics.Metrics
	db      Pinger
	opts    Options
	log     logging.Logger
}

func NewHandler(us UserService, cs CredentialService, store images.Store, m *metrics.Metrics, db Pinger,
	opts Options, log logging.Logger) *Handler {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = images.DefaultMaxSize
	}
	if opts.TokenValidity <= 0 {
		opts.TokenValidity = time.Hour
	}
	return &Handler{
		users:   us,
		creds:   cs,
		images:  store,
		metrics: m,
		db:      db,
		opts:    opts,
		log:     log.With("module", "http"),
	}
}
