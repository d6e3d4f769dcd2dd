// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/pkg/errutil"
)

// maxCreateAccountBody bounds the create_account request body.
const maxCreateAccountBody = 16 << 10

type createAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := SessionFromContext(r.Context()); !ok {
		unauthorized(w)
		return
	}
	writeText(w, http.StatusAccepted, "Logged in")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	s.keyring.Logout(r.Context(), session)
	s.cookies.Expire(w)
	writeText(w, http.StatusAccepted, "Logged out")
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateAccountBody)

	var req createAccountRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	_, err := s.keyring.CreateAccount(r.Context(), req.Name, req.Password)
	switch {
	case err == nil:
		writeText(w, http.StatusAccepted, "Account created")
	case errors.Is(err, auth.ErrDuplicatePrincipal):
		http.Error(w, "account already exists", http.StatusConflict)
	case errors.Is(err, auth.ErrInvalidPrincipal), errors.Is(err, auth.ErrInvalidSecret):
		http.Error(w, "invalid account details", http.StatusBadRequest)
	default:
		errutil.LogErrorContext(r.Context(), s.logger, "account creation failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	w.Write([]byte(body))
}
