package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
)

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) (bool, error)
}

type TokenManager interface {
	GenerateToken(userID int64, username string) (string, error)
	ParseToken(token string) (*auth.Claims, error)
}

type NewUser struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

type ProfileUpdate struct {
	Username  string
	FirstName string
	LastName  string
}

type LoginResult struct {
	Token   string
	Profile *models.Profile
}

// UserService owns accounts, logins and the session gate.
type UserService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	tokens      TokenManager
	log         logging.Logger
}

func NewUserService(db dbx.Transactor, m repomanager.RepositoryManager, hasher PasswordHasher,
	tokens TokenManager, log logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		log:         log.With("module", "users"),
	}
}

func validateProfile(username, firstName, lastName string) error {
	if err := requireText("username", username, maxUsernameLen); err != nil {
		return err
	}
	if err := requireText("first name", firstName, maxPersonName); err != nil {
		return err
	}
	return requireText("last name", lastName, maxPersonName)
}

// CreateUser registers an account and returns the stored username.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (string, error) {
	if err := validateProfile(in.Username, in.FirstName, in.LastName); err != nil {
		return "", err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return "", err
	}

	repo := s.repomanager.Users(s.db.DB())

	_, err := repo.GetByUsername(ctx, in.Username)
	if err == nil {
		return "", common.ErrDuplicateUsername
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("error checking username: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return "", err
	}

	user, err := repo.Create(ctx, &models.User{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "user created", "user_id", user.ID)
	return user.Username, nil
}

// VerifyCredentials returns common.ErrNotFound for an unknown username and
// common.ErrInvalidCredentials for a wrong password.
func (s *UserService) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db.DB()).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%w: compare password: %v", common.ErrInternal, err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

// Login verifies credentials, records the login and issues a session token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	user, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.RecordLogin(ctx, user.ID, ip); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{Token: token, Profile: user.Profile()}, nil
}

// Authenticate resolves a session token to the profile of a user that still
// exists.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Profile, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db.DB()).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user.Profile(), nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	user, err := s.repomanager.Users(s.db.DB()).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*models.Profile, error) {
	if err := validateProfile(in.Username, in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db.DB())

	other, err := repo.GetByUsername(ctx, in.Username)
	switch {
	case err == nil && other.ID != userID:
		return nil, common.ErrDuplicateUsername
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("error checking username: %w", err)
	}

	user, err := repo.UpdateProfile(ctx, &models.User{
		ID:        userID,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile updated", "user_id", userID)
	return user.Profile(), nil
}

// ChangePassword re-verifies the current password and rejects a new password
// that matches the stored hash.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := validatePassword("new password", next); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db.DB())

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("%w: compare password: %v", common.ErrInternal, err)
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	same, err := s.hasher.Compare(ctx, user.PasswordHash, next)
	if err != nil {
		return fmt.Errorf("%w: compare password: %v", common.ErrInternal, err)
	}
	if same {
		return common.ErrSamePassword
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return err
	}

	if err := repo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// RecordLogin appends a login history record. Failures are returned.
func (s *UserService) RecordLogin(ctx context.Context, userID int64, ip string) error {
	if err := s.repomanager.LoginHistory(s.db.DB()).Create(ctx, userID, ip); err != nil {
		return fmt.Errorf("error recording login: %w", err)
	}
	return nil
}

// FetchLoginHistory returns the newest records first. limit is clamped here
// and only here: values below 1 mean the default of 10, values above 100 mean
// 100.
func (s *UserService) FetchLoginHistory(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	return s.repomanager.LoginHistory(s.db.DB()).ListRecent(ctx, userID, ClampHistoryLimit(limit))
}

func ClampHistoryLimit(limit int) int {
	switch {
	case limit < 1:
		return common.DefaultLoginHistory
	case limit > common.MaxLoginHistory:
		return common.MaxLoginHistory
	default:
		return limit
	}
}
