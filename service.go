package blockhub

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxUsernameAttempts bounds the candidate usernames tried when a
// federated user signs in for the first time.
const DefaultMaxUsernameAttempts = 100

type Service interface {
	Create(ctx context.Context, requestor string, req CreateUserRequest) (*Profile, error)
	View(ctx context.Context, requestor, username string) (*Profile, error)
	Delete(ctx context.Context, requestor, username string) error
	SetPassword(ctx context.Context, requestor string, req SetPasswordRequest) error
	ResetPassword(ctx context.Context, username string) error
	Login(ctx context.Context, req LoginRequest) (*Profile, error)
	Logout(ctx context.Context, requestor, clientID string) error
	LinkAccount(ctx context.Context, requestor string, req LinkAccountRequest) error
	UnlinkAccount(ctx context.Context, requestor, username string, acc LinkedAccount) error
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	GroupID  string `json:"groupId,omitempty"`
	Password string `json:"password"`
	DryRun   bool   `json:"dryrun,omitempty"`
}

type SetPasswordRequest struct {
	Username    string `json:"-"`
	NewPassword string `json:"password"`
	OldPassword string `json:"oldPassword,omitempty"`
}

type service struct {
	users    Repository
	projects ProjectRepository
	sessions SessionRegistry
	checker  PermissionChecker
	notifier Notifier
	log      logrus.FieldLogger

	maxUsernameAttempts int
	now                 func() time.Time
}

type Option func(*service)

func WithLogger(log logrus.FieldLogger) Option {
	return func(svc *service) { svc.log = log }
}

func WithMaxUsernameAttempts(n int) Option {
	return func(svc *service) {
		if n > 0 {
			svc.maxUsernameAttempts = n
		}
	}
}

func NewService(users Repository, projects ProjectRepository, sessions SessionRegistry,
	checker PermissionChecker, notifier Notifier, opts ...Option) Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	svc := &service{
		users:               users,
		projects:            projects,
		sessions:            sessions,
		checker:             checker,
		notifier:            notifier,
		log:                 discard,
		maxUsernameAttempts: DefaultMaxUsernameAttempts,
		now:                 func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *service) Create(ctx context.Context, requestor string, req CreateUserRequest) (*Profile, error) {
	if err := validateNewUser(req.Username, req.Email); err != nil {
		return nil, err
	}

	if req.Password == "" {
		return nil, missingArgument("password")
	}

	if req.GroupID != "" {
		if err := svc.checker.EnsureAuthorized(ctx, requestor, WriteGroup(req.GroupID)); err != nil {
			return nil, err
		}
	}

	user := newUser(req.Username, req.Email, req.GroupID)
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user.Hash = hash

	if req.DryRun {
		existing, err := svc.users.FindByName(ctx, user.Username)
		if err != nil {
			return nil, fmt.Errorf("error finding user: %w", err)
		}
		if existing != nil {
			return nil, requestError("user %s already exists", user.Username)
		}
		return user.Profile(), nil
	}

	inserted, err := svc.users.InsertIfAbsent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error saving user: %w", err)
	}
	if !inserted {
		return nil, requestError("user %s already exists", user.Username)
	}

	svc.log.WithField("username", user.Username).Info("user created")
	return user.Profile(), nil
}

// View returns nil without an error when the user does not exist.
func (svc *service) View(ctx context.Context, requestor, username string) (*Profile, error) {
	if err := svc.checker.EnsureAuthorized(ctx, requestor, ReadUser(username)); err != nil {
		return nil, err
	}

	u, err := svc.users.FindByName(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	return u.Profile(), nil
}

// Delete removes the user and then, best effort, every project it owns.
// Projects left behind by a failed cascade are logged, not reported.
func (svc *service) Delete(ctx context.Context, requestor, username string) error {
	if err := svc.checker.EnsureAuthorized(ctx, requestor, DeleteUser(username)); err != nil {
		return err
	}

	n, err := svc.users.Delete(ctx, username)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if n == 0 {
		return userNotFound(username)
	}

	log := svc.log.WithField("username", username)
	removed, err := svc.projects.DeleteByOwner(ctx, username)
	if err != nil {
		log.WithError(err).Warn("user deleted but their projects were not")
		return nil
	}

	log.WithField("projects", removed).Info("user deleted")
	return nil
}

// SetPassword with an old password is a compare-and-set on the stored hash.
// Without one it is an administrative overwrite. Unknown users and wrong old
// passwords both fail with ErrIncorrectUserOrPassword.
func (svc *service) SetPassword(ctx context.Context, requestor string, req SetPasswordRequest) error {
	if req.Username == "" {
		return missingArgument("username")
	}
	if req.NewPassword == "" {
		return missingArgument("password")
	}

	if err := svc.checker.EnsureAuthorized(ctx, requestor, WriteUser(req.Username)); err != nil {
		return err
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	expected := ""
	if req.OldPassword != "" {
		u, err := svc.users.FindByName(ctx, req.Username)
		if err != nil {
			return fmt.Errorf("error finding user: %w", err)
		}
		if u == nil || !checkPasswordHash(u.Hash, req.OldPassword) {
			return ErrIncorrectUserOrPassword
		}
		expected = u.Hash
	}

	matched, err := svc.users.UpdateHash(ctx, req.Username, expected, hash)
	if err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	if matched == 0 {
		return ErrIncorrectUserOrPassword
	}
	return nil
}

// ResetPassword is keyed by username alone and performs no capability check.
// The temporary password is mailed to the user; a delivery failure is
// returned even though the password has already changed.
func (svc *service) ResetPassword(ctx context.Context, username string) error {
	if username == "" {
		return missingArgument("username")
	}

	password, err := temporaryPassword()
	if err != nil {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	prev, err := svc.users.FindAndSetHash(ctx, username, hash)
	if err != nil {
		return fmt.Errorf("error resetting password: %w", err)
	}
	if prev == nil {
		return userNotFound(username)
	}

	err = svc.notifier.SendMail(ctx, Mail{
		To:      prev.Email,
		Subject: "Temporary Password",
		Body:    fmt.Sprintf("Hello %s,\n\nYour password has been temporarily reset to %s. Please change it after logging in.\n", username, password),
	})
	if err != nil {
		return fmt.Errorf("error sending reset email: %w", err)
	}
	return nil
}
