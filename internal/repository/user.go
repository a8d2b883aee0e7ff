package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/quoteboard/pairing-server/internal/database"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/util"
)

var ErrEmailTaken = errors.New("email already registered")

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE email = $1
	`, NormalizeEmail(email))
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING *
	`, NormalizeEmail(params.Email), params.PasswordHash, params.DisplayName)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryUserRepository backs local development and tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]*model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := NormalizeEmail(params.Email)
	if _, exists := r.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: params.PasswordHash,
		DisplayName:  params.DisplayName,
		CreatedAt:    time.Now().UTC(),
	}
	r.byID[user.ID] = user
	r.byEmail[email] = user

	out := *user
	return &out, nil
}

var _ UserRepository = (*MemoryUserRepository)(nil)
