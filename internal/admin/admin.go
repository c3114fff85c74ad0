// Package admin implements the HTTP console administrators use to log in,
// review accounts and chat history, and toggle account flags. It is a
// thin, mostly read-only consumer of internal/store — not part of the
// chat protocol itself.
package admin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coregx/chat/internal/store"
)

const sessionCookieName = "chat_admin_session"

// Server is the admin console's HTTP handler set.
type Server struct {
	store     store.UserStore
	log       zerolog.Logger
	secret    []byte
	mux       *http.ServeMux
	templates *template.Template
}

// New builds a Server. secret signs session cookies (crypto/hmac); it must
// stay stable across restarts for existing sessions to remain valid.
func New(st store.UserStore, secret []byte, log zerolog.Logger) *Server {
	s := &Server{
		store:     st,
		log:       log,
		secret:    secret,
		mux:       http.NewServeMux(),
		templates: template.Must(template.New("admin").Parse(templateSource)),
	}
	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /", s.requireAdmin(s.handleIndex))
	s.mux.HandleFunc("POST /users/{id}", s.requireAdmin(s.handleUpdateUser))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	login := r.FormValue("login")
	password := r.FormValue("password")

	u, err := s.store.Authenticate(r.Context(), login, password)
	switch {
	case errors.Is(err, store.ErrAuthFailed):
		s.render(w, "login", map[string]string{"Error": "Invalid credentials"})
		return
	case err != nil:
		s.log.Error().Err(err).Msg("authenticate failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	case !u.Admin:
		s.render(w, "login", map[string]string{"Error": "This account is not an administrator"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sign(u.ID, s.secret),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// requireAdmin gates a handler behind a valid, HMAC-verified session
// cookie naming an is_admin user, mirroring the original console's
// LoggedUser request guard.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		userID, ok := verify(cookie.Value, s.secret)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		u, err := s.store.GetUserByID(r.Context(), userID)
		switch {
		case errors.Is(err, store.ErrNoSuchUser):
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		case err != nil:
			s.log.Error().Err(err).Msg("get user by id failed")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		case !u.Admin:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("get all users failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	messages, err := s.store.GetMessagesDesc(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("get messages failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "index", map[string]any{"Users": users, "Messages": messages})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	isActive := r.FormValue("is_active") == "on"
	isAdmin := r.FormValue("is_admin") == "on"

	err := s.store.UpdateUser(r.Context(), id, isAdmin, isActive)
	switch {
	case errors.Is(err, store.ErrNoSuchUser):
		http.Error(w, "no such user", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("update user failed")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

// sign produces an opaque cookie value "<userID>.<hex hmac>" so the cookie
// cannot be forged or replayed for a different user without the secret.
func sign(userID string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userID))
	return userID + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify checks a cookie value produced by sign and extracts the user ID.
func verify(value string, secret []byte) (userID string, ok bool) {
	idx := strings.LastIndex(value, ".")
	if idx < 0 {
		return "", false
	}
	userID, sig := value[:idx], value[idx+1:]

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userID))
	want, err := hex.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(want, mac.Sum(nil)) {
		return "", false
	}
	return userID, true
}
