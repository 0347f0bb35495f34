// Package api implements the HTTP surface of the planning service.
package api

import (
	"errors"
	"net/http"
	"strings"

	"cvrpplan/internal/auth"
)

type Principal struct {
	Tenant string
	Role   string // admin, dispatcher, viewer
}

var errUnauthenticated = errors.New("missing or invalid bearer token")

// getPrincipal extracts tenant and role.
//   - A bearer token is checked by the configured verifier (dev or hmac).
//   - In hmac mode a valid token is required.
//   - Otherwise X-Tenant-Id and X-Role headers are used, defaulting to an admin
//     of tenant t_demo.
func (s *Server) getPrincipal(r *http.Request) (Principal, error) {
	authz := r.Header.Get("Authorization")
	if s.Auth.Enabled() && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Tenant: pr.Tenant, Role: pr.Role}, nil
	}
	if s.Auth != nil && s.Auth.Mode == auth.ModeHMAC {
		return Principal{}, errUnauthenticated
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := strings.ToLower(r.Header.Get("X-Role"))
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}, nil
}

// principal writes a 401 problem and reports false when r is unauthenticated.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, err := s.getPrincipal(r)
	if err != nil {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return p, false
	}
	return p, true
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanPlan reports whether the principal may submit optimize requests.
func (p Principal) CanPlan() bool { return p.IsAdmin() || p.Role == "dispatcher" }
