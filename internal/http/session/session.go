// Package session holds the admin gate and the flash notices, both kept
// in one signed cookie (gorilla/sessions).
//
// Nothing about who is logged in lives in process memory: Load reads the
// cookie on every request and puts a Principal into the request context,
// and PrincipalFrom is the only way handlers ask "is this an admin?".
package session

import (
	"context"
	"crypto/subtle"
	"encoding/gob"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	cookieName = "eventreg-session"
	adminKey   = "admin"
)

// Flash levels, used as CSS classes by the templates.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelDanger  = "danger"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

func init() {
	// Session values are gob-encoded into the cookie.
	gob.Register(Flash{})
}

// Principal is what the current request is allowed to do.
type Principal struct {
	IsAdmin bool
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the request's principal; requests that did not
// pass through Load are anonymous.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// Options configure a Manager.
type Options struct {
	Secret    string
	MaxAge    int
	Secure    bool
	AdminUser string
	AdminPass string
}

// Manager owns the cookie store and the admin credential pair.
type Manager struct {
	store     *sessions.CookieStore
	adminUser []byte
	adminPass []byte
}

func NewManager(opts Options) *Manager {
	store := sessions.NewCookieStore([]byte(opts.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		store:     store,
		adminUser: []byte(opts.AdminUser),
		adminPass: []byte(opts.AdminPass),
	}
}

// get never fails: a cookie that does not verify (expired, or signed with
// an old secret) yields a fresh, empty session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, _ := m.store.Get(r, cookieName)
	return s
}

// Load is middleware deriving the request's Principal from the cookie.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, _ := m.get(r).Values[adminKey].(bool)
		ctx := WithPrincipal(r.Context(), Principal{IsAdmin: admin})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login sets the admin flag iff both values match the configured pair.
// A false result does not say which one was wrong. notices are queued in
// the same cookie write on success.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, user, pass string, notices ...Flash) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), m.adminUser)
	passOK := subtle.ConstantTimeCompare([]byte(pass), m.adminPass)
	if userOK&passOK != 1 {
		return false, nil
	}

	s := m.get(r)
	s.Values[adminKey] = true
	for _, n := range notices {
		s.AddFlash(n)
	}
	if err := s.Save(r, w); err != nil {
		return false, fmt.Errorf("session: save login: %w", err)
	}
	return true, nil
}

// Logout clears the admin flag. The cookie itself survives so notices
// can travel with it.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request, notices ...Flash) error {
	s := m.get(r)
	delete(s.Values, adminKey)
	for _, n := range notices {
		s.AddFlash(n)
	}
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("session: save logout: %w", err)
	}
	return nil
}

// Flash queues a notice for the next rendered page. It must be called
// before anything is written to w.
func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, level, msg string) error {
	s := m.get(r)
	s.AddFlash(Flash{Level: level, Message: msg})
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("session: save flash: %w", err)
	}
	return nil
}

// Flashes pops the queued notices.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]Flash, error) {
	s := m.get(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	if err := s.Save(r, w); err != nil {
		return nil, fmt.Errorf("session: save flashes: %w", err)
	}

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out, nil
}
