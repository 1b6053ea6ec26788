package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/model"
	"expensetracker/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// In-memory fakes for the repository layer. All of them are safe for
// concurrent use because the bulk admin path fans out over goroutines.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]model.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]model.Request
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[uuid.UUID]model.Request)}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	for i := range req.Items {
		if req.Items[i].ID == uuid.Nil {
			req.Items[i].ID = uuid.New()
		}
		req.Items[i].RequestID = req.ID
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func matchesFilter(req model.Request, filter repository.RequestFilter) bool {
	if filter.EmployeeID != nil && req.EmployeeID != *filter.EmployeeID {
		return false
	}
	if filter.RequestType != "" && req.RequestType != filter.RequestType {
		return false
	}
	if filter.Status != "" && req.Status != filter.Status {
		return false
	}
	if filter.Department != "" && req.Department != filter.Department {
		return false
	}
	if filter.From != nil && req.RequestDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && req.RequestDate.After(*filter.To) {
		return false
	}
	return true
}

func (f *fakeRequestRepo) FindByFilter(_ context.Context, filter repository.RequestFilter, offset, limit int) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Request
	for _, req := range f.requests {
		if matchesFilter(req, filter) {
			matched = append(matched, req)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RequestDate.After(matched[j].RequestDate) })
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeRequestRepo) CountByFilter(_ context.Context, filter repository.RequestFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, req := range f.requests {
		if matchesFilter(req, filter) {
			total++
		}
	}
	return total, nil
}

func (f *fakeRequestRepo) Update(_ context.Context, req *model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	req.UpdatedAt = time.Now()
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeRequestRepo) ReplaceItems(_ context.Context, req *model.Request, items []model.RequestItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].RequestID = req.ID
	}
	req.Items = items
	req.UpdatedAt = time.Now()
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, id)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListByEntity(_ context.Context, entityID string) ([]model.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.AuditLog
	for _, e := range f.entries {
		if e.EntityID == entityID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// passthroughTx runs the function without an actual database transaction
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeNotifier) Publish(msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// --- Seeding helpers ---

func seedUser(t *testing.T, repo *fakeUserRepo, name, email, department, role string) model.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := model.User{
		Name:       name,
		Email:      email,
		Password:   string(hashed),
		Department: department,
		Role:       role,
	}
	if err := repo.Create(context.Background(), &user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func identityFor(user model.User) model.Identity {
	return model.Identity{
		UserID:     user.ID.String(),
		Role:       user.Role,
		Department: user.Department,
		Name:       user.Name,
	}
}
