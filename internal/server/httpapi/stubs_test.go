package httpapi

import (
	"context"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/passgen"
	"github.com/dmitrijs2005/passvault/internal/server/images"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

const validToken = "valid-token"

var alice = &models.Profile{ID: 7, Username: "alice", FirstName: "Alice", LastName: "A"}

type stubUsers struct {
	login         func(username, password, ip string) (*services.LoginResult, error)
	createUser    func(in services.NewUser) (string, error)
	updateProfile func(in services.ProfileUpdate) (*models.Profile, error)
	changePwd     func(current, next string) error
	history       func(limit int) ([]*models.LoginRecord, error)
}

func (s *stubUsers) Login(ctx context.Context, username, password, ip string) (*services.LoginResult, error) {
	return s.login(username, password, ip)
}

func (s *stubUsers) Authenticate(ctx context.Context, token string) (*models.Profile, error) {
	if token != validToken {
		return nil, common.ErrInvalidToken
	}
	return alice, nil
}

func (s *stubUsers) CreateUser(ctx context.Context, in services.NewUser) (string, error) {
	return s.createUser(in)
}

func (s *stubUsers) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	return alice, nil
}

func (s *stubUsers) UpdateProfile(ctx context.Context, userID int64, in services.ProfileUpdate) (*models.Profile, error) {
	return s.updateProfile(in)
}

func (s *stubUsers) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	return s.changePwd(current, next)
}

func (s *stubUsers) FetchLoginHistory(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	return s.history(limit)
}

// stubCreds records the owner id it was called with so tests can check that
// handlers always pass the session user.
type stubCreds struct {
	owner int64

	list       func(f models.ListFilter) (*models.CredentialPage, error)
	create     func(in models.CreateCredential) (*models.Credential, error)
	update     func(id int64, in models.UpdateCredential) (*models.Credential, error)
	deleteBulk func(ids []int64) (int, error)
	reveal     func(id int64) (string, error)
	imagePath  func(id int64) (string, error)
	export     func() ([]*models.ExportedCredential, error)
	questions  func(id int64) ([]models.QuestionInput, error)
}

func (s *stubCreds) List(ctx context.Context, ownerID int64, f models.ListFilter) (*models.CredentialPage, error) {
	s.owner = ownerID
	return s.list(f)
}

func (s *stubCreds) Get(ctx context.Context, id, ownerID int64) (*models.Credential, error) {
	s.owner = ownerID
	if id != 1 {
		return nil, common.ErrNotFound
	}
	return &models.Credential{ID: 1, Name: "Bank", Secret: "c1phertext"}, nil
}

func (s *stubCreds) Create(ctx context.Context, ownerID int64, in models.CreateCredential) (*models.Credential, error) {
	s.owner = ownerID
	return s.create(in)
}

func (s *stubCreds) Update(ctx context.Context, id, ownerID int64, in models.UpdateCredential) (*models.Credential, error) {
	s.owner = ownerID
	return s.update(id, in)
}

func (s *stubCreds) Delete(ctx context.Context, id, ownerID int64) error {
	_, err := s.DeleteBulk(ctx, []int64{id}, ownerID)
	return err
}

func (s *stubCreds) DeleteBulk(ctx context.Context, ids []int64, ownerID int64) (int, error) {
	s.owner = ownerID
	return s.deleteBulk(ids)
}

func (s *stubCreds) GetSecurityQuestions(ctx context.Context, id, ownerID int64) ([]models.QuestionInput, error) {
	s.owner = ownerID
	return s.questions(id)
}

func (s *stubCreds) RevealSecret(ctx context.Context, id, ownerID int64) (string, error) {
	s.owner = ownerID
	return s.reveal(id)
}

func (s *stubCreds) ImagePath(ctx context.Context, id, ownerID int64) (string, error) {
	s.owner = ownerID
	return s.imagePath(id)
}

func (s *stubCreds) ExportAll(ctx context.Context, ownerID int64) ([]*models.ExportedCredential, error) {
	s.owner = ownerID
	return s.export()
}

func (s *stubCreds) GeneratePassword(o passgen.Options) (string, error) {
	return passgen.Generate(o)
}

type stubImages struct {
	saved   []string
	removed []string
}

var _ images.Store = (*stubImages)(nil)

func (s *stubImages) Save(ctx context.Context, u *images.Upload) (string, error) {
	p := "/uploads/img" + u.Ext
	s.saved = append(s.saved, p)
	return p, nil
}

func (s *stubImages) Remove(ctx context.Context, path string) error {
	s.removed = append(s.removed, path)
	return nil
}

func (s *stubImages) URL(ctx context.Context, path string) (string, error) {
	return "https://cdn.example/" + path, nil
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }
