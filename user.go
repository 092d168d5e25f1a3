package blockhub

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"
)

// hashCost is lowered by tests.
var hashCost = 12

// Repository is the Identity Store. Finds report an absent user as nil, nil.
// Every write is a single atomic document operation.
type Repository interface {
	// InsertIfAbsent stores u unless a user with the same username exists.
	InsertIfAbsent(ctx context.Context, u *User) (bool, error)
	FindByName(ctx context.Context, username string) (*User, error)
	FindByLinkedAccount(ctx context.Context, acc LinkedAccount) (*User, error)
	// UpdateHash replaces the hash of username. A non-empty expected hash
	// turns it into a compare-and-set.
	UpdateHash(ctx context.Context, username, expected, hash string) (int64, error)
	// FindAndSetHash replaces the hash and returns the user as it was before.
	FindAndSetHash(ctx context.Context, username, hash string) (*User, error)
	AddLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error)
	RemoveLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	Delete(ctx context.Context, username string) (int64, error)
}

type ID string

// LinkedAccount associates a local user with a username on an external
// identity provider.
type LinkedAccount struct {
	Username string `bson:"username" json:"username"`
	Type     string `bson:"type" json:"type"`
}

type User struct {
	ID             ID              `bson:"_id"`
	Username       string          `bson:"username"`
	Email          string          `bson:"email"`
	Hash           string          `bson:"hash"`
	GroupID        string          `bson:"groupId,omitempty"`
	LinkedAccounts []LinkedAccount `bson:"linkedAccounts"`
	CreatedAt      time.Time       `bson:"createdAt"`
	LastLoginAt    time.Time       `bson:"lastLoginAt,omitempty"`
}

// Profile is a User without its storage id and credential hash.
type Profile struct {
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	GroupID        string          `json:"groupId,omitempty"`
	LinkedAccounts []LinkedAccount `json:"linkedAccounts"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastLoginAt    time.Time       `json:"lastLoginAt,omitempty"`
}

func newUser(username, email, groupID string) *User {
	return &User{
		ID:             nextID(),
		Username:       username,
		Email:          email,
		GroupID:        groupID,
		LinkedAccounts: []LinkedAccount{},
		CreatedAt:      time.Now().UTC(),
	}
}

func (u *User) Profile() *Profile {
	linked := make([]LinkedAccount, len(u.LinkedAccounts))
	copy(linked, u.LinkedAccounts)

	return &Profile{
		Username:       u.Username,
		Email:          u.Email,
		GroupID:        u.GroupID,
		LinkedAccounts: linked,
		CreatedAt:      u.CreatedAt,
		LastLoginAt:    u.LastLoginAt,
	}
}

func (u *User) IsLinkedTo(acc LinkedAccount) bool {
	for _, la := range u.LinkedAccounts {
		if la == acc {
			return true
		}
	}
	return false
}

// NewProjectName returns name if none of the user's projects use it, otherwise
// the first of "name (2)", "name (3)", ... that is free.
func (u *User) NewProjectName(name string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, t := range taken {
		used[t] = true
	}

	if !used[name] {
		return name
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !used[candidate] {
			return candidate
		}
	}
}

func nextID() ID {
	return ID(xid.New().String())
}

// IsValidID reports whether id is a well-formed xid, as issued for users,
// projects and sessions.
func IsValidID(id string) bool {
	if _, err := xid.FromString(id); err != nil {
		return false
	}
	return true
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(preparePassword(password), hashCost)
	if err != nil {
		return "", errors.New("error hashing password")
	}
	return string(hash), nil
}

func checkPasswordHash(hash, password string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), preparePassword(password))
	return err == nil
}

// bcrypt only looks at the first 72 bytes, so longer secrets are pre-hashed.
func preparePassword(password string) []byte {
	b := []byte(password)
	if len(b) <= 72 {
		return b
	}
	sum := sha256.Sum256(b)
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func temporaryPassword() (string, error) {
	b := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("error generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
