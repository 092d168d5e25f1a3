package blockhub

import (
	"context"
	"fmt"
	"strings"
)

// LoginRequest authenticates against the local credential store, or against
// Strategy when it is set. A non-empty ClientID binds the live session with
// that id to the authenticated user.
type LoginRequest struct {
	Username string
	Password string
	Strategy Strategy
	ClientID string
}

func (svc *service) Login(ctx context.Context, req LoginRequest) (*Profile, error) {
	if req.Username == "" {
		return nil, missingArgument("username")
	}
	if req.Password == "" {
		return nil, missingArgument("password")
	}

	var session *Session
	if req.ClientID != "" {
		s, ok := svc.sessions.Session(req.ClientID)
		if !ok {
			return nil, ErrSessionNotFound
		}
		session = s
	}

	var (
		user *User
		err  error
	)
	if req.Strategy == nil {
		user, err = svc.localLogin(ctx, req.Username, req.Password)
	} else {
		user, err = svc.federatedLogin(ctx, req.Strategy, req.Username, req.Password)
	}
	if err != nil {
		return nil, err
	}

	if session != nil {
		if err := svc.rebind(ctx, session, user); err != nil {
			return nil, err
		}
	}

	at := svc.now()
	if err := svc.users.UpdateLastLogin(ctx, user.Username, at); err != nil {
		svc.log.WithError(err).WithField("username", user.Username).Warn("could not record last login")
	} else {
		user.LastLoginAt = at
	}

	return user.Profile(), nil
}

func (svc *service) localLogin(ctx context.Context, username, password string) (*User, error) {
	u, err := svc.users.FindByName(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if u == nil || !checkPasswordHash(u.Hash, password) {
		return nil, ErrIncorrectUserOrPassword
	}
	return u, nil
}

// federatedLogin returns the user linked to the external identity, creating
// one on first use.
func (svc *service) federatedLogin(ctx context.Context, st Strategy, username, secret string) (*User, error) {
	if err := st.Authenticate(ctx, username, secret); err != nil {
		return nil, err
	}

	acc := LinkedAccount{Username: username, Type: st.Type()}
	u, err := svc.users.FindByLinkedAccount(ctx, acc)
	if err != nil {
		return nil, fmt.Errorf("error finding linked user: %w", err)
	}
	if u != nil {
		return u, nil
	}

	email, err := st.Email(ctx, username, secret)
	if err != nil {
		return nil, err
	}

	user := newUser(localUsername(username, providerSuffix(st.Type())), email, "")
	user.LinkedAccounts = []LinkedAccount{acc}
	if err := svc.insertWithFreeUsername(ctx, user, st.Type()); err != nil {
		return nil, err
	}

	log := svc.log.WithField("username", user.Username).WithField("strategy", st.Type())
	log.Info("user created from linked account")

	err = svc.notifier.SendMail(ctx, Mail{
		To:      user.Email,
		Subject: "Welcome!",
		Body:    fmt.Sprintf("Welcome %s!\n\nYour account has been created from your %s login.\n", user.Username, st.Type()),
	})
	if err != nil {
		log.WithError(err).Warn("could not send welcome email")
	}

	return user, nil
}

// insertWithFreeUsername stores user under the first free candidate
// username. Each attempt is its own insert-if-absent so concurrent signups
// never share a name.
func (svc *service) insertWithFreeUsername(ctx context.Context, user *User, providerType string) error {
	base := user.Username
	suffix := providerSuffix(providerType)

	for attempt := 0; attempt < svc.maxUsernameAttempts; attempt++ {
		user.Username = candidateUsername(base, suffix, attempt)

		inserted, err := svc.users.InsertIfAbsent(ctx, user)
		if err != nil {
			return fmt.Errorf("error saving user: %w", err)
		}
		if inserted {
			return nil
		}
	}

	user.Username = base
	return fmt.Errorf("%w for %q after %d attempts", ErrUsernameExhausted, base, svc.maxUsernameAttempts)
}

// candidateUsername yields bob, bob_snap, bob2_snap, bob3_snap, ...
func candidateUsername(base, suffix string, attempt int) string {
	switch attempt {
	case 0:
		return base
	case 1:
		return base + "_" + suffix
	default:
		return fmt.Sprintf("%s%d_%s", base, attempt, suffix)
	}
}

// rebind hands the session and its anonymous project over to user. The
// rename and the owner change are one conditional update, so a project that
// stopped being anonymous in the meantime is left alone. If the handover
// fails the session gets its previous username back.
func (svc *service) rebind(ctx context.Context, session *Session, user *User) (err error) {
	if err := svc.sessions.SetUsername(session.ID, user.Username); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := svc.sessions.SetUsername(session.ID, session.Username); rerr != nil {
			svc.log.WithError(rerr).WithField("client", session.ID).Warn("could not restore session")
		}
	}()

	if session.ProjectID == "" {
		return nil
	}

	p, err := svc.projects.FindByID(ctx, session.ProjectID)
	if err != nil {
		return fmt.Errorf("error finding project: %w", err)
	}
	if p == nil || !isAnonymousOwner(p.Owner) {
		return nil
	}

	names, err := svc.projects.NamesByOwner(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("error listing projects: %w", err)
	}

	name := user.NewProjectName(p.Name, names)
	moved, err := svc.projects.TransferOwnership(ctx, p.ID, p.Owner, user.Username, name)
	if err != nil {
		return fmt.Errorf("error transferring project: %w", err)
	}
	if !moved {
		return nil
	}

	log := svc.log.WithField("username", user.Username).WithField("project", p.ID)
	if err := svc.sessions.NotifyProjectOwnerChanged(ctx, p.ID); err != nil {
		log.WithError(err).Warn("could not notify project subscribers")
	}
	log.Info("anonymous project transferred")
	return nil
}

func isAnonymousOwner(owner string) bool {
	return strings.HasPrefix(owner, anonymousOwnerPrefix)
}

// Logout checks the capability against the username the registry has bound
// to the session, not one supplied by the caller.
func (svc *service) Logout(ctx context.Context, requestor, clientID string) error {
	if clientID == "" {
		return missingArgument("clientId")
	}

	session, ok := svc.sessions.Session(clientID)
	if !ok {
		return ErrSessionNotFound
	}

	if !session.IsAnonymous() {
		if err := svc.checker.EnsureAuthorized(ctx, requestor, WriteUser(session.Username)); err != nil {
			return err
		}
	}

	return svc.sessions.Logout(clientID)
}
