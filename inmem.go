package blockhub

import (
	"context"
	"sync"
	"time"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewUserRepository() Repository {
	return &userRepository{users: map[string]*User{}}
}

func (repo *userRepository) InsertIfAbsent(ctx context.Context, u *User) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.users[u.Username]; ok {
		return false, nil
	}
	repo.users[u.Username] = copyUser(u)
	return true, nil
}

func (repo *userRepository) FindByName(ctx context.Context, username string) (*User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if u, ok := repo.users[username]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (repo *userRepository) FindByLinkedAccount(ctx context.Context, acc LinkedAccount) (*User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, u := range repo.users {
		if u.IsLinkedTo(acc) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (repo *userRepository) UpdateHash(ctx context.Context, username, expected, hash string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	u, ok := repo.users[username]
	if !ok || (expected != "" && u.Hash != expected) {
		return 0, nil
	}
	u.Hash = hash
	return 1, nil
}

func (repo *userRepository) FindAndSetHash(ctx context.Context, username, hash string) (*User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	u, ok := repo.users[username]
	if !ok {
		return nil, nil
	}
	prev := copyUser(u)
	u.Hash = hash
	return prev, nil
}

func (repo *userRepository) AddLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	u, ok := repo.users[username]
	if !ok {
		return 0, nil
	}
	if !u.IsLinkedTo(acc) {
		u.LinkedAccounts = append(u.LinkedAccounts, acc)
	}
	return 1, nil
}

func (repo *userRepository) RemoveLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	u, ok := repo.users[username]
	if !ok {
		return 0, nil
	}

	kept := u.LinkedAccounts[:0]
	for _, la := range u.LinkedAccounts {
		if la != acc {
			kept = append(kept, la)
		}
	}
	u.LinkedAccounts = kept
	return 1, nil
}

func (repo *userRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if u, ok := repo.users[username]; ok {
		u.LastLoginAt = at
	}
	return nil
}

func (repo *userRepository) Delete(ctx context.Context, username string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, ok := repo.users[username]; !ok {
		return 0, nil
	}
	delete(repo.users, username)
	return 1, nil
}

func copyUser(u *User) *User {
	c := *u
	c.LinkedAccounts = append([]LinkedAccount{}, u.LinkedAccounts...)
	return &c
}

type projectRepository struct {
	mu       sync.RWMutex
	projects map[ProjectID]*Project
}

func NewProjectRepository() ProjectRepository {
	return &projectRepository{projects: map[ProjectID]*Project{}}
}

func (repo *projectRepository) Store(ctx context.Context, p *Project) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	c := *p
	repo.projects[p.ID] = &c
	return nil
}

func (repo *projectRepository) FindByID(ctx context.Context, id ProjectID) (*Project, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	if p, ok := repo.projects[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (repo *projectRepository) NamesByOwner(ctx context.Context, owner string) ([]string, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	names := []string{}
	for _, p := range repo.projects {
		if p.Owner == owner {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func (repo *projectRepository) TransferOwnership(ctx context.Context, id ProjectID, from, to, name string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	p, ok := repo.projects[id]
	if !ok || p.Owner != from {
		return false, nil
	}
	p.Owner = to
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (repo *projectRepository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var n int64
	for id, p := range repo.projects {
		if p.Owner == owner {
			delete(repo.projects, id)
			n++
		}
	}
	return n, nil
}
