package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/server/models"
)

// MemoryRepository keeps users in process memory. It is meant for local
// runs and tests; all methods are safe for concurrent use.
type MemoryRepository struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	now   func() time.Time
	newID func() string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.User),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

func (r *MemoryRepository) taken(username, email, exceptID string) bool {
	for id, u := range r.byID {
		if id == exceptID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(user.Username, user.Email, "") {
		return nil, common.NewError(common.ErrorConflict, "user with email or username already exists")
	}

	now := r.now()
	user.ID = r.newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.RefreshToken = nil
	r.byID[user.ID] = clone(user)

	return user, nil
}

func (r *MemoryRepository) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.taken(username, email, ""), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.IsEmpty() {
		return clone(u), nil
	}

	if upd.Email != nil && r.taken("", *upd.Email, id) {
		return nil, common.NewError(common.ErrorConflict, "user with email or username already exists")
	}

	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.CoverImage != nil {
		u.CoverImage = *upd.CoverImage
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.ClearRefreshToken {
		u.RefreshToken = nil
	}
	u.UpdatedAt = r.now()

	return clone(u), nil
}

func (r *MemoryRepository) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if u.RefreshToken == nil {
		return nil, nil
	}
	t := *u.RefreshToken
	return &t, nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if token == nil {
		u.RefreshToken = nil
	} else {
		t := *token
		u.RefreshToken = &t
	}
	u.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return false, common.ErrorNotFound
	}
	if u.RefreshToken == nil || *u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = &next
	u.UpdatedAt = r.now()
	return true, nil
}
