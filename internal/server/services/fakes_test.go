package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/loginhistory"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/questions"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/users"
)

// fakeStore is an in-memory stand-in for the database. fakeTx snapshots it
// before each transaction and restores the snapshot on error.
type fakeStore struct {
	mu sync.Mutex

	users     map[int64]*models.User
	creds     map[int64]*models.Credential
	questions []*models.SecurityQuestion
	logins    []*models.LoginRecord
	nextID    int64

	createBatchErr error
	loginErr       error
	updateErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]*models.User{},
		creds: map[int64]*models.Credential{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	users     map[int64]models.User
	creds     map[int64]models.Credential
	questions []models.SecurityQuestion
	logins    []models.LoginRecord
}

func (s *fakeStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{users: map[int64]models.User{}, creds: map[int64]models.Credential{}}
	for k, v := range s.users {
		snap.users[k] = *v
	}
	for k, v := range s.creds {
		snap.creds[k] = *v
	}
	for _, q := range s.questions {
		snap.questions = append(snap.questions, *q)
	}
	for _, l := range s.logins {
		snap.logins = append(snap.logins, *l)
	}
	return snap
}

func (s *fakeStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[int64]*models.User{}
	for k, v := range snap.users {
		v := v
		s.users[k] = &v
	}
	s.creds = map[int64]*models.Credential{}
	for k, v := range snap.creds {
		v := v
		s.creds[k] = &v
	}
	s.questions = nil
	for _, q := range snap.questions {
		q := q
		s.questions = append(s.questions, &q)
	}
	s.logins = nil
	for _, l := range snap.logins {
		l := l
		s.logins = append(s.logins, &l)
	}
}

func (s *fakeStore) questionsOf(credentialID int64) []*models.SecurityQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SecurityQuestion
	for _, q := range s.questions {
		if q.CredentialID == credentialID {
			out = append(out, q)
		}
	}
	return out
}

type fakeTx struct {
	s         *fakeStore
	commits   int
	rollbacks int
}

var _ dbx.Transactor = (*fakeTx)(nil)

func (f *fakeTx) DB() dbx.DBTX { return nil }

func (f *fakeTx) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	snap := f.s.snapshot()
	if err := fn(ctx, nil); err != nil {
		f.s.restore(snap)
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

// --- users ---

type fakeUsers struct{ s *fakeStore }

func (r fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if other.Username == u.Username {
			return nil, common.ErrDuplicateUsername
		}
	}
	cp := *u
	cp.ID = r.s.id()
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	r.s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUsers) LockByID(ctx context.Context, id int64) error {
	_, err := r.GetByID(ctx, id)
	return err
}

func (r fakeUsers) UpdateProfile(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cur.Username, cur.FirstName, cur.LastName = u.Username, u.FirstName, u.LastName
	cur.UpdatedAt = time.Now()
	cp := *cur
	return &cp, nil
}

func (r fakeUsers) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	cur.PasswordHash = hash
	return nil
}

// --- credentials ---

type fakeCreds struct{ s *fakeStore }

func matches(c *models.Credential, userID int64, search string) bool {
	return c.UserID == userID && strings.Contains(strings.ToLower(c.Name), strings.ToLower(search))
}

func (r fakeCreds) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	cp.ID = r.s.id()
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	r.s.creds[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeCreds) Count(ctx context.Context, userID int64, search string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.creds {
		if matches(c, userID, search) {
			n++
		}
	}
	return n, nil
}

func (r fakeCreds) NameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.creds {
		if c.UserID == userID && c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeCreds) sorted(userID int64, search string) []*models.Credential {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Credential
	for _, c := range r.s.creds {
		if matches(c, userID, search) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r fakeCreds) List(ctx context.Context, userID int64, search string, limit, offset int) ([]*models.Credential, error) {
	all := r.sorted(userID, search)
	if offset >= len(all) {
		return []*models.Credential{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r fakeCreds) ListAll(ctx context.Context, userID int64) ([]*models.Credential, error) {
	all := r.sorted(userID, "")
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r fakeCreds) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.creds[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeCreds) GetByIDForOwner(ctx context.Context, id, userID int64) (*models.Credential, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (r fakeCreds) Update(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return nil, r.s.updateErr
	}
	cur, ok := r.s.creds[c.ID]
	if !ok || cur.UserID != c.UserID {
		return nil, common.ErrNotFound
	}
	cp := *c
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	r.s.creds[c.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeCreds) Delete(ctx context.Context, id, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.creds[id]
	if !ok || cur.UserID != userID {
		return common.ErrNotFound
	}
	delete(r.s.creds, id)
	kept := r.s.questions[:0]
	for _, q := range r.s.questions {
		if q.CredentialID != id {
			kept = append(kept, q)
		}
	}
	r.s.questions = kept
	return nil
}

// --- questions ---

type fakeQuestions struct{ s *fakeStore }

func (r fakeQuestions) ListByCredential(ctx context.Context, credentialID int64) ([]*models.SecurityQuestion, error) {
	return r.s.questionsOf(credentialID), nil
}

func (r fakeQuestions) ListByOwner(ctx context.Context, userID int64) ([]*models.SecurityQuestion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.SecurityQuestion
	for _, q := range r.s.questions {
		if c, ok := r.s.creds[q.CredentialID]; ok && c.UserID == userID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r fakeQuestions) CreateBatch(ctx context.Context, credentialID int64, qs []*models.SecurityQuestion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createBatchErr != nil {
		return r.s.createBatchErr
	}
	for _, q := range qs {
		cp := *q
		cp.ID = r.s.id()
		cp.CredentialID = credentialID
		r.s.questions = append(r.s.questions, &cp)
	}
	return nil
}

func (r fakeQuestions) DeleteByCredential(ctx context.Context, credentialID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := []*models.SecurityQuestion{}
	for _, q := range r.s.questions {
		if q.CredentialID != credentialID {
			kept = append(kept, q)
		}
	}
	r.s.questions = kept
	return nil
}

// --- login history ---

type fakeLogins struct{ s *fakeStore }

func (r fakeLogins) Create(ctx context.Context, userID int64, ip string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.loginErr != nil {
		return r.s.loginErr
	}
	r.s.logins = append(r.s.logins, &models.LoginRecord{ID: r.s.id(), UserID: userID, IPAddress: ip, LoggedInAt: time.Now()})
	return nil
}

func (r fakeLogins) ListRecent(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.LoginRecord{}
	for i := len(r.s.logins) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.logins[i].UserID == userID {
			out = append(out, r.s.logins[i])
		}
	}
	return out, nil
}

// --- manager ---

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return fakeUsers{m.s} }
func (m *fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository   { return fakeCreds{m.s} }
func (m *fakeRepoManager) Questions(dbx.DBTX) questions.Repository       { return fakeQuestions{m.s} }
func (m *fakeRepoManager) LoginHistory(dbx.DBTX) loginhistory.Repository { return fakeLogins{m.s} }

type fakeImages struct {
	removed []string
	err     error
}

func (f *fakeImages) Remove(ctx context.Context, path string) error {
	f.removed = append(f.removed, path)
	return f.err
}
