package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jimiolaniyan/blockhub"
)

// newProvider serves a token endpoint that accepts bob/s3cret and a userinfo
// endpoint that returns email for the issued token.
func newProvider(t *testing.T, email string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "bob" || r.Form.Get("password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-bob",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-bob" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "bob", "email": email})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGrant(t *testing.T, srv *httptest.Server) *PasswordGrant {
	g, err := NewPasswordGrant(Config{
		Type:        "Snap!",
		ClientID:    "blockhub",
		TokenURL:    srv.URL + "/token",
		UserInfoURL: srv.URL + "/userinfo",
	})
	assert.NoError(t, err)
	return g
}

func TestNewPasswordGrant_RequiresEndpoints(t *testing.T) {
	_, err := NewPasswordGrant(Config{Type: "snap", TokenURL: "http://x/token"})
	assert.Error(t, err)
}

func TestPasswordGrant_Authenticate(t *testing.T) {
	g := newGrant(t, newProvider(t, "bob@snap.example"))
	var st blockhub.Strategy = g

	assert.Equal(t, "Snap!", st.Type())
	assert.NoError(t, st.Authenticate(context.Background(), "bob", "s3cret"))

	err := st.Authenticate(context.Background(), "bob", "wrong")
	assert.True(t, errors.Is(err, blockhub.ErrExternalAuth))
}

func TestPasswordGrant_Email(t *testing.T) {
	g := newGrant(t, newProvider(t, "bob@snap.example"))

	email, err := g.Email(context.Background(), "bob", "s3cret")
	assert.NoError(t, err)
	assert.Equal(t, "bob@snap.example", email)

	_, err = g.Email(context.Background(), "bob", "wrong")
	assert.True(t, errors.Is(err, blockhub.ErrExternalAuth))

	noEmail := newGrant(t, newProvider(t, ""))
	_, err = noEmail.Email(context.Background(), "bob", "s3cret")
	assert.Error(t, err)
}
