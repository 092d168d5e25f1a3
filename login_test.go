package blockhub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LoginTestSuite struct {
	suite.Suite
	ctx      context.Context
	users    Repository
	projects ProjectRepository
	events   *projectEventsSpy
	sessions *Sessions
	notifier *notifierSpy
	snap     *fakeStrategy
	svc      Service
}

func (suite *LoginTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.users = NewUserRepository()
	suite.projects = NewProjectRepository()
	suite.events = &projectEventsSpy{}
	suite.sessions = NewSessions(suite.events)
	suite.notifier = &notifierSpy{}
	suite.snap = newFakeStrategy("Snap!").add("bob", "s3cret", "bob@snap.example")
	suite.svc = NewService(suite.users, suite.projects, suite.sessions, newAdminChecker("root"), suite.notifier)
}

func (suite *LoginTestSuite) TestLocalLogin() {
	storeUser(suite.users, "alice", "alice@example.com", "password")

	tests := []struct {
		req     LoginRequest
		wantErr error
	}{
		{LoginRequest{Password: "password"}, ErrMissingArguments},
		{LoginRequest{Username: "alice"}, ErrMissingArguments},
		{LoginRequest{Username: "alice", Password: "wrong"}, ErrIncorrectUserOrPassword},
		{LoginRequest{Username: "nobody", Password: "password"}, ErrIncorrectUserOrPassword},
		{LoginRequest{Username: "alice", Password: "password", ClientID: "missing"}, ErrSessionNotFound},
		{LoginRequest{Username: "alice", Password: "password"}, nil},
	}

	for _, tt := range tests {
		profile, err := suite.svc.Login(suite.ctx, tt.req)
		if tt.wantErr != nil {
			assert.True(suite.T(), errors.Is(err, tt.wantErr), "%v", err)
			assert.Nil(suite.T(), profile)
			continue
		}
		assert.NoError(suite.T(), err)
		assert.Equal(suite.T(), "alice", profile.Username)
		assert.False(suite.T(), profile.LastLoginAt.IsZero())
	}
}

func (suite *LoginTestSuite) TestLogin_UnknownSessionFailsBeforeAuthenticating() {
	_, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap, ClientID: "missing"})

	assert.True(suite.T(), errors.Is(err, ErrSessionNotFound))
	u, _ := suite.users.FindByName(suite.ctx, "bob")
	assert.Nil(suite.T(), u)
}

func (suite *LoginTestSuite) TestFederatedLogin_CreatesUser() {
	profile, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob", profile.Username)
	assert.Equal(suite.T(), "bob@snap.example", profile.Email)
	assert.Equal(suite.T(), []LinkedAccount{{"bob", "Snap!"}}, profile.LinkedAccounts)

	u, _ := suite.users.FindByName(suite.ctx, "bob")
	assert.Empty(suite.T(), u.Hash)
	assert.Equal(suite.T(), "bob@snap.example", suite.notifier.last().To)
	assert.Equal(suite.T(), "Welcome!", suite.notifier.last().Subject)

	again, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob", again.Username)
	assert.Len(suite.T(), suite.notifier.sent, 1)
}

func (suite *LoginTestSuite) TestFederatedLogin_RejectedCredentials() {
	_, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "wrong", Strategy: suite.snap})

	assert.True(suite.T(), errors.Is(err, ErrExternalAuth))
	u, _ := suite.users.FindByName(suite.ctx, "bob")
	assert.Nil(suite.T(), u)
}

func (suite *LoginTestSuite) TestFederatedLogin_UsernameCollisions() {
	storeUser(suite.users, "bob", "local@example.com", "password")
	storeUser(suite.users, "bob_snap", "other@example.com", "password")

	profile, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob2_snap", profile.Username)

	local, _ := suite.users.FindByName(suite.ctx, "bob")
	assert.Empty(suite.T(), local.LinkedAccounts)
	assert.True(suite.T(), checkPasswordHash(local.Hash, "password"))
}

func (suite *LoginTestSuite) TestFederatedLogin_UsernameExhausted() {
	svc := NewService(suite.users, suite.projects, suite.sessions, newAdminChecker(), suite.notifier, WithMaxUsernameAttempts(2))
	storeUser(suite.users, "bob", "a@b.c", "p")
	storeUser(suite.users, "bob_snap", "a@b.c", "p")

	_, err := svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap})

	assert.True(suite.T(), errors.Is(err, ErrUsernameExhausted))
	u, _ := suite.users.FindByName(suite.ctx, "bob2_snap")
	assert.Nil(suite.T(), u)
}

func (suite *LoginTestSuite) TestFederatedLogin_WelcomeMailFailureIsIgnored() {
	suite.notifier.err = errors.New("smtp down")

	profile, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "s3cret", Strategy: suite.snap})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob", profile.Username)
}

func (suite *LoginTestSuite) TestFederatedLogin_ConcurrentFirstLoginsGetDistinctNames() {
	strategies := []*fakeStrategy{
		newFakeStrategy("Snap").add("bob", "x", "1@example.com"),
		newFakeStrategy("Edu").add("bob", "x", "2@example.com"),
		newFakeStrategy("Git").add("bob", "x", "3@example.com"),
	}

	var wg sync.WaitGroup
	names := make([]string, len(strategies))
	for i, st := range strategies {
		wg.Add(1)
		go func(i int, st Strategy) {
			defer wg.Done()
			p, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "bob", Password: "x", Strategy: st})
			if assert.NoError(suite.T(), err) {
				names[i] = p.Username
			}
		}(i, st)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(suite.T(), seen[n], n)
		seen[n] = true
	}
	assert.True(suite.T(), seen["bob"])
}

func (suite *LoginTestSuite) TestFederatedLogin_ReservedExternalUsername() {
	victim := suite.sessions.Connect()
	work := NewProject(AnonymousOwner(victim.ID), "work")
	_ = suite.projects.Store(suite.ctx, work)
	_ = suite.sessions.SetProject(victim.ID, work.ID)

	external := AnonymousOwner(victim.ID)
	snap := newFakeStrategy("Snap!").add(external, "x", "evil@snap.example")

	profile, err := suite.svc.Login(suite.ctx, LoginRequest{Username: external, Password: "x", Strategy: snap})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "anon"+victim.ID, profile.Username)
	assert.NoError(suite.T(), validateNewUser(profile.Username, profile.Email))
	assert.Equal(suite.T(), []LinkedAccount{{external, "Snap!"}}, profile.LinkedAccounts)

	names, _ := suite.projects.NamesByOwner(suite.ctx, profile.Username)
	assert.Empty(suite.T(), names)

	assert.NoError(suite.T(), suite.svc.Delete(suite.ctx, "root", profile.Username))
	p, _ := suite.projects.FindByID(suite.ctx, work.ID)
	if assert.NotNil(suite.T(), p) {
		assert.Equal(suite.T(), AnonymousOwner(victim.ID), p.Owner)
	}
}

func (suite *LoginTestSuite) TestFederatedLogin_InvalidCharactersInExternalUsername() {
	tests := []struct {
		external, want string
	}{
		{"bob smith/x", "bobsmithx"},
		{"__bob", "bob"},
		{"@@@", "snap"},
	}

	for _, tt := range tests {
		snap := newFakeStrategy("Snap!").add(tt.external, "x", "x@snap.example")

		profile, err := suite.svc.Login(suite.ctx, LoginRequest{Username: tt.external, Password: "x", Strategy: snap})

		assert.NoError(suite.T(), err, tt.external)
		assert.Equal(suite.T(), tt.want, profile.Username)
		assert.NoError(suite.T(), validateNewUser(profile.Username, profile.Email))

		again, err := suite.svc.Login(suite.ctx, LoginRequest{Username: tt.external, Password: "x", Strategy: snap})
		assert.NoError(suite.T(), err)
		assert.Equal(suite.T(), tt.want, again.Username)
	}
}

func (suite *LoginTestSuite) TestLogin_FailedHandoverRestoresSession() {
	svc := NewService(suite.users, unlistableProjects{suite.projects}, suite.sessions, newAdminChecker(), suite.notifier)
	storeUser(suite.users, "alice", "a@b.c", "password")
	storeUser(suite.users, "carol", "c@b.c", "password")

	anonymous := suite.sessions.Connect()
	bound := suite.sessions.Connect()
	_ = suite.sessions.SetUsername(bound.ID, "carol")

	for _, s := range []*Session{anonymous, bound} {
		p := NewProject(AnonymousOwner(s.ID), "P")
		_ = suite.projects.Store(suite.ctx, p)
		_ = suite.sessions.SetProject(s.ID, p.ID)
	}

	_, err := svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: anonymous.ID})
	assert.Error(suite.T(), err)
	s, _ := suite.sessions.Session(anonymous.ID)
	assert.True(suite.T(), s.IsAnonymous())

	_, err = svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: bound.ID})
	assert.Error(suite.T(), err)
	s, _ = suite.sessions.Session(bound.ID)
	assert.Equal(suite.T(), "carol", s.Username)
}

func (suite *LoginTestSuite) TestLogin_RebindsSessionAndTransfersProject() {
	storeUser(suite.users, "alice", "a@b.c", "password")
	_ = suite.projects.Store(suite.ctx, NewProject("alice", "P"))

	s := suite.sessions.Connect()
	anon := NewProject(AnonymousOwner(s.ID), "P")
	_ = suite.projects.Store(suite.ctx, anon)
	_ = suite.sessions.SetProject(s.ID, anon.ID)

	_, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: s.ID})
	assert.NoError(suite.T(), err)

	bound, _ := suite.sessions.Session(s.ID)
	assert.Equal(suite.T(), "alice", bound.Username)

	p, _ := suite.projects.FindByID(suite.ctx, anon.ID)
	assert.Equal(suite.T(), "alice", p.Owner)
	assert.Equal(suite.T(), "P (2)", p.Name)
	assert.Equal(suite.T(), []ProjectID{anon.ID}, suite.events.updated)
}

func (suite *LoginTestSuite) TestLogin_OwnedProjectIsNotTransferred() {
	storeUser(suite.users, "alice", "a@b.c", "password")
	storeUser(suite.users, "carol", "c@b.c", "password")

	s := suite.sessions.Connect()
	owned := NewProject("carol", "P")
	_ = suite.projects.Store(suite.ctx, owned)
	_ = suite.sessions.SetProject(s.ID, owned.ID)

	_, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: s.ID})
	assert.NoError(suite.T(), err)

	p, _ := suite.projects.FindByID(suite.ctx, owned.ID)
	assert.Equal(suite.T(), "carol", p.Owner)
	assert.Equal(suite.T(), "P", p.Name)
	assert.Empty(suite.T(), suite.events.updated)
}

func (suite *LoginTestSuite) TestLogin_NotificationFailureIsIgnored() {
	storeUser(suite.users, "alice", "a@b.c", "password")
	suite.events.err = errors.New("redis down")

	s := suite.sessions.Connect()
	anon := NewProject(AnonymousOwner(s.ID), "P")
	_ = suite.projects.Store(suite.ctx, anon)
	_ = suite.sessions.SetProject(s.ID, anon.ID)

	_, err := suite.svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: s.ID})
	assert.NoError(suite.T(), err)

	p, _ := suite.projects.FindByID(suite.ctx, anon.ID)
	assert.Equal(suite.T(), "alice", p.Owner)
}

func (suite *LoginTestSuite) TestLogout() {
	storeUser(suite.users, "alice", "a@b.c", "password")
	s := suite.sessions.Connect()
	_, _ = suite.svc.Login(suite.ctx, LoginRequest{Username: "alice", Password: "password", ClientID: s.ID})

	assert.True(suite.T(), errors.Is(suite.svc.Logout(suite.ctx, "alice", ""), ErrMissingArguments))
	assert.True(suite.T(), errors.Is(suite.svc.Logout(suite.ctx, "alice", "missing"), ErrSessionNotFound))
	assert.True(suite.T(), errors.Is(suite.svc.Logout(suite.ctx, "mallory", s.ID), ErrNotAuthorized))

	assert.NoError(suite.T(), suite.svc.Logout(suite.ctx, "alice", s.ID))
	bound, _ := suite.sessions.Session(s.ID)
	assert.True(suite.T(), bound.IsAnonymous())

	assert.NoError(suite.T(), suite.svc.Logout(suite.ctx, "", s.ID))
}

func TestLoginTestSuite(t *testing.T) {
	suite.Run(t, new(LoginTestSuite))
}
