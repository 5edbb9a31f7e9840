package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	if !ValidID(user.ID) {
		return ErrInvalidID
	}
	email := NormalizeEmail(user.Email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	user.Email = email
	stampCreated(&user)
	r.users[user.ID] = cloneUser(user)
	r.byEmail[email] = user.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	if !ValidID(id) {
		return User{}, ErrInvalidID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *memoryRepository) UpdateByID(_ context.Context, id string, patch Patch) (User, error) {
	if !ValidID(id) {
		return User{}, ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	oldEmail := user.Email
	patch.Apply(&user)
	user.Email = NormalizeEmail(user.Email)
	if user.Email != oldEmail {
		if owner, taken := r.byEmail[user.Email]; taken && owner != id {
			return User{}, ErrDuplicateEmail
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[user.Email] = id
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *memoryRepository) DeleteByID(_ context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	delete(r.byEmail, user.Email)
	return nil
}

// cloneUser detaches slices and pointers so callers cannot mutate stored state.
func cloneUser(u User) User {
	if u.Age != nil {
		age := *u.Age
		u.Age = &age
	}
	if u.Locations != nil {
		u.Locations = append([]Location{}, u.Locations...)
	}
	if u.PasswordHash != nil {
		u.PasswordHash = append([]byte{}, u.PasswordHash...)
	}
	if u.TemporaryPasswordHash != nil {
		u.TemporaryPasswordHash = append([]byte{}, u.TemporaryPasswordHash...)
	}
	return u
}
