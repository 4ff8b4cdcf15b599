package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/passgen"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ImageRemover deletes a stored image by the path kept on the credential.
type ImageRemover interface {
	Remove(ctx context.Context, path string) error
}

// CredentialService manages a user's passwords. Secrets and answers are
// encrypted before they reach a repository and decrypted only by
// GetSecurityQuestions, RevealSecret and ExportAll, each after an
// owner-scoped lookup.
type CredentialService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	cipher      cryptox.Cipher
	images      ImageRemover
	log         logging.Logger
}

func NewCredentialService(db dbx.Transactor, m repomanager.RepositoryManager, cipher cryptox.Cipher,
	images ImageRemover, log logging.Logger) *CredentialService {
	return &CredentialService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		images:      images,
		log:         log.With("module", "credentials"),
	}
}

func (s *CredentialService) List(ctx context.Context, ownerID int64, f models.ListFilter) (*models.CredentialPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}

	repo := s.repomanager.Credentials(s.db.DB())

	total, err := repo.Count(ctx, ownerID, f.Search)
	if err != nil {
		return nil, err
	}

	items, err := repo.List(ctx, ownerID, f.Search, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, err
	}

	return &models.CredentialPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Get returns the credential with its secret still encrypted. A credential
// owned by someone else is reported as not found.
func (s *CredentialService) Get(ctx context.Context, id, ownerID int64) (*models.Credential, error) {
	return s.repomanager.Credentials(s.db.DB()).GetByIDForOwner(ctx, id, ownerID)
}

func (s *CredentialService) encryptQuestions(qs []models.QuestionInput) ([]*models.SecurityQuestion, error) {
	out := make([]*models.SecurityQuestion, 0, len(qs))
	for _, q := range qs {
		answer, err := s.cipher.Encrypt(q.Answer)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.SecurityQuestion{Question: q.Question, Answer: answer})
	}
	return out, nil
}

// Create stores a new credential. The quota and name checks run under a lock
// on the owner's row so concurrent creates cannot overshoot the limit.
func (s *CredentialService) Create(ctx context.Context, ownerID int64, in models.CreateCredential) (*models.Credential, error) {
	if err := requireText("name", in.Name, maxCredName); err != nil {
		return nil, err
	}
	if err := requireText("password", in.Secret, maxSecretLen); err != nil {
		return nil, err
	}
	if err := validateQuestions(in.Questions); err != nil {
		return nil, err
	}

	secret, err := s.cipher.Encrypt(in.Secret)
	if err != nil {
		return nil, err
	}
	questions, err := s.encryptQuestions(in.Questions)
	if err != nil {
		return nil, err
	}

	var created *models.Credential
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		if err := s.repomanager.Users(tx).LockByID(ctx, ownerID); err != nil {
			return err
		}

		n, err := repo.Count(ctx, ownerID, "")
		if err != nil {
			return err
		}
		if n >= common.MaxCredentialsPerUser {
			return common.ErrQuotaExceeded
		}

		exists, err := repo.NameExists(ctx, ownerID, in.Name, 0)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrDuplicateName
		}

		created, err = repo.Create(ctx, &models.Credential{
			UserID: ownerID,
			Name:   in.Name,
			Secret: secret,
			Image:  in.Image,
		})
		if err != nil {
			return err
		}

		if len(questions) > 0 {
			return s.repomanager.Questions(tx).CreateBatch(ctx, created.ID, questions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "password created", "user_id", ownerID, "id", created.ID)
	created.Secret = ""
	return created, nil
}

// loadOwned fetches id for a mutation: a missing id is common.ErrNotFound, a
// foreign one common.ErrNotOwner.
func loadOwned(ctx context.Context, repo credentials.Repository, id, ownerID int64) (*models.Credential, error) {
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != ownerID {
		return nil, common.ErrNotOwner
	}
	return c, nil
}

// Update applies a partial update. A new question set replaces the old one in
// the same transaction. A replaced image is removed after commit; failing to
// remove it is only logged.
func (s *CredentialService) Update(ctx context.Context, id, ownerID int64, in models.UpdateCredential) (*models.Credential, error) {
	if in.Name != nil {
		if err := requireText("name", *in.Name, maxCredName); err != nil {
			return nil, err
		}
	}
	if in.Secret != nil {
		if err := requireText("password", *in.Secret, maxSecretLen); err != nil {
			return nil, err
		}
	}

	var questions []*models.SecurityQuestion
	if in.Questions != nil {
		if err := validateQuestions(*in.Questions); err != nil {
			return nil, err
		}
		var err error
		if questions, err = s.encryptQuestions(*in.Questions); err != nil {
			return nil, err
		}
	}

	var secret string
	if in.Secret != nil {
		var err error
		if secret, err = s.cipher.Encrypt(*in.Secret); err != nil {
			return nil, err
		}
	}

	var (
		updated  *models.Credential
		oldImage string
	)
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		c, err := loadOwned(ctx, repo, id, ownerID)
		if err != nil {
			return err
		}

		if in.Name != nil && !strings.EqualFold(*in.Name, c.Name) {
			exists, err := repo.NameExists(ctx, ownerID, *in.Name, id)
			if err != nil {
				return err
			}
			if exists {
				return common.ErrDuplicateName
			}
		}
		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.Secret != nil {
			c.Secret = secret
		}
		if in.Image != nil {
			if c.Image != nil && *c.Image != *in.Image {
				oldImage = *c.Image
			}
			c.Image = in.Image
		}

		updated, err = repo.Update(ctx, c)
		if err != nil {
			return err
		}

		if in.Questions == nil {
			return nil
		}
		qrepo := s.repomanager.Questions(tx)
		if err := qrepo.DeleteByCredential(ctx, id); err != nil {
			return err
		}
		if len(questions) > 0 {
			return qrepo.CreateBatch(ctx, id, questions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldImage != "" {
		s.removeImage(ctx, oldImage, id)
	}

	s.log.Info(ctx, "password updated", "user_id", ownerID, "id", id)
	updated.Secret = ""
	return updated, nil
}

func (s *CredentialService) Delete(ctx context.Context, id, ownerID int64) error {
	_, err := s.DeleteBulk(ctx, []int64{id}, ownerID)
	return err
}

// DeleteBulk deletes all of ids or none of them and returns how many distinct
// credentials went. Security questions go with their credential. Images are
// removed after commit, best effort.
func (s *CredentialService) DeleteBulk(ctx context.Context, ids []int64, ownerID int64) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids", common.ErrFieldRequired)
	}

	var images []string
	seen := make(map[int64]struct{}, len(ids))
	err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			c, err := loadOwned(ctx, repo, id, ownerID)
			if err != nil {
				return fmt.Errorf("password %d: %w", id, err)
			}
			if err := repo.Delete(ctx, id, ownerID); err != nil {
				return fmt.Errorf("password %d: %w", id, err)
			}
			if c.Image != nil {
				images = append(images, *c.Image)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, img := range images {
		s.removeImage(ctx, img, 0)
	}

	s.log.Info(ctx, "passwords deleted", "user_id", ownerID, "count", len(seen))
	return len(seen), nil
}

func (s *CredentialService) removeImage(ctx context.Context, path string, id int64) {
	if s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, path); err != nil {
		s.log.Warn(ctx, "error removing image", "id", id, "path", path, "error", err)
	}
}

// GetSecurityQuestions returns the question set with plaintext answers.
func (s *CredentialService) GetSecurityQuestions(ctx context.Context, id, ownerID int64) ([]models.QuestionInput, error) {
	if _, err := s.Get(ctx, id, ownerID); err != nil {
		return nil, err
	}

	qs, err := s.repomanager.Questions(s.db.DB()).ListByCredential(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]models.QuestionInput, 0, len(qs))
	for _, q := range qs {
		answer, err := s.decrypt(ctx, q.Answer, id)
		if err != nil {
			return nil, err
		}
		out = append(out, models.QuestionInput{Question: q.Question, Answer: answer})
	}
	return out, nil
}

// RevealSecret decrypts the stored secret of a credential the caller owns.
func (s *CredentialService) RevealSecret(ctx context.Context, id, ownerID int64) (string, error) {
	c, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return "", err
	}

	secret, err := s.decrypt(ctx, c.Secret, id)
	if err != nil {
		return "", err
	}

	s.log.Info(ctx, "password revealed", "user_id", ownerID, "id", id)
	return secret, nil
}

// ImagePath returns the stored image path of an owned credential, or
// common.ErrNotFound when there is none.
func (s *CredentialService) ImagePath(ctx context.Context, id, ownerID int64) (string, error) {
	c, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	if c.Image == nil || *c.Image == "" {
		return "", fmt.Errorf("%w: image", common.ErrNotFound)
	}
	return *c.Image, nil
}

// ExportAll decrypts every credential and answer the owner has.
func (s *CredentialService) ExportAll(ctx context.Context, ownerID int64) ([]*models.ExportedCredential, error) {
	creds, err := s.repomanager.Credentials(s.db.DB()).ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	qs, err := s.repomanager.Questions(s.db.DB()).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byCredential := make(map[int64][]*models.SecurityQuestion, len(creds))
	for _, q := range qs {
		byCredential[q.CredentialID] = append(byCredential[q.CredentialID], q)
	}

	out := make([]*models.ExportedCredential, 0, len(creds))
	for _, c := range creds {
		secret, err := s.decrypt(ctx, c.Secret, c.ID)
		if err != nil {
			return nil, err
		}

		answers := make([]models.QuestionInput, 0, len(byCredential[c.ID]))
		for _, q := range byCredential[c.ID] {
			answer, err := s.decrypt(ctx, q.Answer, c.ID)
			if err != nil {
				return nil, err
			}
			answers = append(answers, models.QuestionInput{Question: q.Question, Answer: answer})
		}

		out = append(out, &models.ExportedCredential{
			ID:                c.ID,
			Name:              c.Name,
			Secret:            secret,
			SecurityQuestions: answers,
			CreatedAt:         c.CreatedAt,
			UpdatedAt:         c.UpdatedAt,
		})
	}

	s.log.Info(ctx, "passwords exported", "user_id", ownerID, "count", len(out))
	return out, nil
}

func (s *CredentialService) decrypt(ctx context.Context, ciphertext string, id int64) (string, error) {
	plain, err := s.cipher.Decrypt(ciphertext)
	if err != nil {
		s.log.Error(ctx, "error decrypting", "id", id, "error", err)
		if errors.Is(err, common.ErrDecryption) {
			return "", common.ErrDecryption
		}
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return plain, nil
}

func (s *CredentialService) GeneratePassword(o passgen.Options) (string, error) {
	return passgen.Generate(o)
}
