package fakeuserrepo

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ users.Directory = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lookups  int
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.emailIds[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	delete(ur.emailIds, strings.ToLower(email))
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.lookups++

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

// Lookups reports how many GetByEmail calls the repo has served.
func (ur *FakeUserRepo) Lookups() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.lookups
}
