package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/prudhvinik1/fieldsync/internal/errors"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/prudhvinik1/fieldsync/internal/services"
	"github.com/prudhvinik1/fieldsync/internal/utils"
)

// Authenticator is the operator sign-in surface.
type Authenticator interface {
	TokenVerifier
	Register(ctx context.Context, req services.RegisterRequest) (*models.Account, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, token string) error
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, r, errors.New(errors.ErrValidation, "email is required"))
		return
	}

	account, err := h.auth.Register(r.Context(), services.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	switch {
	case stderrors.Is(err, services.ErrEmailExists):
		writeError(w, r, errors.Wrap(errors.ErrConflict, "email already registered", err))
		return
	case stderrors.Is(err, utils.ErrPasswordTooShort):
		writeError(w, r, errors.Wrap(errors.ErrValidation, err.Error(), err))
		return
	case err != nil:
		writeError(w, r, errors.Wrap(errors.ErrDatabase, "failed to register", err))
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), services.LoginRequest{Email: req.Email, Password: req.Password})
	switch {
	case stderrors.Is(err, services.ErrInvalidCredentials):
		writeError(w, r, errors.Wrap(errors.ErrUnauthorized, "invalid email or password", err))
		return
	case err != nil:
		writeError(w, r, errors.Wrap(errors.ErrDatabase, "failed to login", err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout ends the current session, or every session of the operator with
// ?all=true.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, r, errors.New(errors.ErrUnauthorized, "missing bearer token"))
		return
	}

	var err error
	if r.URL.Query().Get("all") == "true" {
		err = h.auth.LogoutAll(r.Context(), token)
	} else {
		err = h.auth.Logout(r.Context(), token)
	}
	switch {
	case stderrors.Is(err, services.ErrInvalidToken):
		writeError(w, r, errors.Wrap(errors.ErrUnauthorized, "invalid token", err))
		return
	case err != nil:
		writeError(w, r, errors.Wrap(errors.ErrDatabase, "failed to logout", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
