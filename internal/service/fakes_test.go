package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) OrderPaymentConfirmed(ctx context.Context, o model.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockNotifier) OrderCompleted(ctx context.Context, o model.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockNotifier) OrderStatusUpdated(ctx context.Context, o model.Order, prev model.OrderStatus) error {
	return m.Called(ctx, o, prev).Error(0)
}

func (m *mockNotifier) SubmissionReceived(ctx context.Context, s model.SiteSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockNotifier) SubmissionApproved(ctx context.Context, s model.SiteSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockNotifier) SubmissionRejected(ctx context.Context, s model.SiteSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockNotifier) EmailVerification(ctx context.Context, u model.User, token string) error {
	return m.Called(ctx, u, token).Error(0)
}

func (m *mockNotifier) PasswordReset(ctx context.Context, u model.User, token string) error {
	return m.Called(ctx, u, token).Error(0)
}

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*model.User
	fails error
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{byID: map[string]*model.User{}}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails != nil {
		return nil, m.fails
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails != nil {
		return nil, m.fails
	}
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) find(pred func(*model.User) bool) *model.User {
	for _, u := range m.byID {
		if pred(u) {
			return u
		}
	}
	return nil
}

func (m *memUsers) List(_ context.Context, p repository.Page) ([]model.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, p), len(out), nil
}

func (m *memUsers) update(id string, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(u *model.User) { u.LastLoginAt = &at })
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return m.update(id, func(u *model.User) { u.PasswordHash, u.ResetTokenHash, u.ResetExpiresAt, u.UpdatedAt = hash, nil, nil, at })
}

func (m *memUsers) SetResetToken(_ context.Context, id, tokenHash string, exp, at time.Time) error {
	return m.update(id, func(u *model.User) { u.ResetTokenHash, u.ResetExpiresAt, u.UpdatedAt = &tokenHash, &exp, at })
}

func (m *memUsers) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(func(u *model.User) bool {
		return u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetExpiresAt.After(now)
	})
	if u == nil {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) VerifyEmail(_ context.Context, tokenHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.find(func(u *model.User) bool {
		return u.VerifyTokenHash != nil && *u.VerifyTokenHash == tokenHash && u.VerifyExpiresAt.After(now)
	})
	if u == nil {
		return repository.ErrNotFound
	}
	u.EmailVerified, u.VerifyTokenHash, u.VerifyExpiresAt = true, nil, nil
	return nil
}

func (m *memUsers) UpdateStatus(_ context.Context, id string, status model.AccountStatus, at time.Time) error {
	return m.update(id, func(u *model.User) { u.Status, u.UpdatedAt = status, at })
}

func (m *memUsers) AdjustBalance(_ context.Context, id string, delta float64, at time.Time) error {
	return m.update(id, func(u *model.User) { u.Balance += delta; u.UpdatedAt = at })
}

type memTokens struct {
	mu      sync.Mutex
	owner   map[string]string
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owner: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.owner[hash]
	if !ok || m.revoked[hash] {
		return "", repository.ErrNotFound
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owner[hash]; !ok || m.revoked[hash] {
		return false, nil
	}
	m.revoked[hash] = true
	return true, nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, uid := range m.owner {
		if uid == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

type memOrders struct {
	mu      sync.Mutex
	rows    map[string]model.Order
	updates int
}

func newMemOrders() *memOrders { return &memOrders{rows: map[string]model.Order{}} }

func (m *memOrders) Create(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[o.ID] = *o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) Update(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[o.ID] = *o
	m.updates++
	return nil
}

func (m *memOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memOrders) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.rows {
		if (f.UserID == "" || o.UserID == f.UserID) && (f.UserEmail == "" || o.UserEmail == f.UserEmail) &&
			(f.Status == "" || o.Status == f.Status) && (f.Type == "" || o.Type == f.Type) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, f.Page), len(out), nil
}

func (m *memOrders) Totals(_ context.Context, userID string) ([]repository.StatusTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := map[model.OrderStatus]*repository.StatusTotals{}
	for _, o := range m.rows {
		if userID != "" && o.UserID != userID {
			continue
		}
		t, ok := acc[o.Status]
		if !ok {
			t = &repository.StatusTotals{Status: o.Status}
			acc[o.Status] = t
		}
		t.Count++
		t.Sum += o.Price
	}
	var out []repository.StatusTotals
	for _, t := range acc {
		out = append(out, *t)
	}
	return out, nil
}

type memSubmissions struct {
	mu   sync.Mutex
	rows map[string]model.SiteSubmission
	log  []string
}

func newMemSubmissions() *memSubmissions {
	return &memSubmissions{rows: map[string]model.SiteSubmission{}}
}

func (m *memSubmissions) Create(_ context.Context, s *model.SiteSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = *s
	return nil
}

func (m *memSubmissions) GetByID(_ context.Context, id string) (*model.SiteSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memSubmissions) Update(_ context.Context, s *model.SiteSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = *s
	return nil
}

func (m *memSubmissions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "record:"+id)
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memSubmissions) List(_ context.Context, f repository.SubmissionFilter) ([]model.SiteSubmission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SiteSubmission
	for _, s := range m.rows {
		if f.Status == "" || s.Status == f.Status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, f.Page), len(out), nil
}

// fileRecorder records removals into the same log as memSubmissions
// so tests can assert ordering.
type fileRecorder struct {
	log *[]string
	err error
}

func (f fileRecorder) Remove(path string) error {
	*f.log = append(*f.log, "file:"+path)
	return f.err
}

type memMessages struct {
	mu      sync.Mutex
	rows    map[string]model.Message
	listErr error
	lists   int
}

func newMemMessages(msgs ...model.Message) *memMessages {
	m := &memMessages{rows: map[string]model.Message{}}
	for _, x := range msgs {
		m.rows[x.ID] = x
	}
	return m
}

func (m *memMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.rows {
		if x.ThreadID == msg.ThreadID {
			return repository.ErrConflict
		}
	}
	m.rows[msg.ID] = *msg
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	x.Contents = append([]model.MessageContent(nil), x.Contents...)
	return &x, nil
}

func (m *memMessages) GetByThreadID(_ context.Context, threadID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.rows {
		if x.ThreadID == threadID {
			x.Contents = append([]model.MessageContent(nil), x.Contents...)
			return &x, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memMessages) Update(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[msg.ID] = *msg
	return nil
}

func (m *memMessages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memMessages) List(_ context.Context, f repository.MessageFilter) ([]model.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, x := range m.rows {
		if (f.Type == "" || x.Type == f.Type) && (f.Approved == nil || x.Approved == *f.Approved) {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, f.Page), len(out), nil
}

func (m *memMessages) ListForUser(_ context.Context, userID, email string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Message
	for _, x := range m.rows {
		if (userID != "" && x.UserID == userID) || x.UserEmail == email {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	return out, nil
}

func (m *memMessages) listCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

type memCatalog struct {
	mu       sync.Mutex
	services map[string]model.Service
	packages map[string]model.ServicePackage
}

func newMemCatalog() *memCatalog {
	return &memCatalog{services: map[string]model.Service{}, packages: map[string]model.ServicePackage{}}
}

func (m *memCatalog) CreateService(_ context.Context, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = *s
	return nil
}

func (m *memCatalog) GetService(_ context.Context, id string) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memCatalog) ListServices(_ context.Context) ([]model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Service
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memCatalog) UpdateService(_ context.Context, s *model.Service) error {
	return m.CreateService(context.Background(), s)
}

func (m *memCatalog) DeleteService(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.services, id)
	return nil
}

func (m *memCatalog) CreatePackage(_ context.Context, p *model.ServicePackage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages[p.ID] = *p
	return nil
}

func (m *memCatalog) GetPackage(_ context.Context, id string) (*model.ServicePackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) ListPackages(_ context.Context, serviceID string) ([]model.ServicePackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ServicePackage
	for _, p := range m.packages {
		if serviceID == "" || p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memCatalog) UpdatePackage(_ context.Context, p *model.ServicePackage) error {
	return m.CreatePackage(context.Background(), p)
}

func (m *memCatalog) DeletePackage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.packages, id)
	return nil
}

func paginate[T any](all []T, p repository.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
