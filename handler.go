package blockhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// TokenIssuer turns an authenticated username into a bearer token.
type TokenIssuer interface {
	Issue(username string) (string, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Strategy string `json:"strategy,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  *Profile `json:"user"`
}

type linkAccountRequest struct {
	Strategy string `json:"strategy"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type connectRequest struct {
	ProjectName string `json:"projectName"`
}

type connectResponse struct {
	ClientID  string    `json:"clientId"`
	ProjectID ProjectID `json:"projectId,omitempty"`
}

func CreateUserHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req CreateUserRequest
		if err := decodeRequest(r.Body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("dryrun") == "true" {
			req.DryRun = true
		}

		profile, err := svc.Create(r.Context(), RequestorFrom(r.Context()), req)
		if err != nil {
			encodeError(err, w)
			return
		}

		if req.DryRun {
			w.WriteHeader(http.StatusOK)
		} else {
			w.Header().Set("Location", fmt.Sprintf("%s/%s", r.URL.Path, profile.Username))
			w.WriteHeader(http.StatusCreated)
		}
		encodeResponse(w, profile)
	})
}

func ViewUserHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		profile, err := svc.View(r.Context(), RequestorFrom(r.Context()), param(r.Context(), "username"))
		if err != nil {
			encodeError(err, w)
			return
		}
		if profile == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		encodeResponse(w, profile)
	})
}

func DeleteUserHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := svc.Delete(r.Context(), RequestorFrom(r.Context()), param(r.Context(), "username")); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func SetPasswordHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req SetPasswordRequest
		if err := decodeRequest(r.Body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req.Username = param(r.Context(), "username")

		if err := svc.SetPassword(r.Context(), RequestorFrom(r.Context()), req); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func ResetPasswordHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := svc.ResetPassword(r.Context(), param(r.Context(), "username")); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func LoginHandler(svc Service, strategies *Strategies, tokens TokenIssuer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req loginRequest
		if err := decodeRequest(r.Body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.ClientID != "" && !IsValidID(req.ClientID) {
			encodeError(ErrSessionNotFound, w)
			return
		}

		login := LoginRequest{Username: req.Username, Password: req.Password, ClientID: req.ClientID}
		if req.Strategy != "" {
			st, err := strategies.Get(req.Strategy)
			if err != nil {
				encodeError(err, w)
				return
			}
			login.Strategy = st
		}

		profile, err := svc.Login(r.Context(), login)
		if err != nil {
			encodeError(err, w)
			return
		}

		token, err := tokens.Issue(profile.Username)
		if err != nil {
			encodeError(err, w)
			return
		}
		encodeResponse(w, loginResponse{Token: token, User: profile})
	})
}

func LogoutHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		clientID := param(r.Context(), "clientId")
		if !IsValidID(clientID) {
			encodeError(ErrSessionNotFound, w)
			return
		}

		if err := svc.Logout(r.Context(), RequestorFrom(r.Context()), clientID); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func LinkAccountHandler(svc Service, strategies *Strategies) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req linkAccountRequest
		if err := decodeRequest(r.Body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		st, err := strategies.Get(req.Strategy)
		if err != nil {
			encodeError(err, w)
			return
		}

		err = svc.LinkAccount(r.Context(), RequestorFrom(r.Context()), LinkAccountRequest{
			Username:         param(r.Context(), "username"),
			Strategy:         st,
			ExternalUsername: req.Username,
			Secret:           req.Password,
		})
		if err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func UnlinkAccountHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var acc LinkedAccount
		if err := decodeRequest(r.Body, &acc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := svc.UnlinkAccount(r.Context(), RequestorFrom(r.Context()), param(r.Context(), "username"), acc); err != nil {
			encodeError(err, w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// ConnectHandler opens an anonymous session, optionally with a new project
// owned by that session.
func ConnectHandler(sessions *Sessions, projects ProjectRepository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req connectRequest
		if err := decodeRequest(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s := sessions.Connect()
		res := connectResponse{ClientID: s.ID}
		if req.ProjectName != "" {
			p := NewProject(AnonymousOwner(s.ID), req.ProjectName)
			if err := projects.Store(r.Context(), p); err != nil {
				sessions.Disconnect(s.ID)
				encodeError(err, w)
				return
			}
			if err := sessions.SetProject(s.ID, p.ID); err != nil {
				encodeError(err, w)
				return
			}
			res.ProjectID = p.ID
		}

		w.WriteHeader(http.StatusCreated)
		encodeResponse(w, res)
	})
}

func param(ctx context.Context, name string) string {
	return httprouter.ParamsFromContext(ctx).ByName(name)
}

func encodeError(err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, ErrMissingArguments), errors.Is(err, ErrUnknownStrategy):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, ErrIncorrectUserOrPassword), errors.Is(err, ErrExternalAuth):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, ErrNotAuthorized):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrRequest), errors.Is(err, ErrUsernameExhausted):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, ErrInvalidArgument):
		w.WriteHeader(http.StatusUnprocessableEntity)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
	encodeResponse(w, map[string]interface{}{
		"error": err.Error(),
	})
}

func encodeResponse(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func decodeRequest(body io.ReadCloser, v interface{}) error {
	return json.NewDecoder(body).Decode(v)
}
