package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(Options{
		Secret:    "test-secret-test-secret-test-sec",
		MaxAge:    3600,
		AdminUser: "admin",
		AdminPass: "admin123",
	})
}

// carry copies the cookies set on rec onto a new request, the way a
// browser would.
func carry(rec *httptest.ResponseRecorder, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func principalOf(m *Manager, req *http.Request) Principal {
	var got Principal
	m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestNewSessionIsAnonymous(t *testing.T) {
	m := newTestManager()
	assert.False(t, principalOf(m, httptest.NewRequest(http.MethodGet, "/", nil)).IsAdmin)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		pass      string
		wantAdmin bool
	}{
		{name: "correct credentials", user: "admin", pass: "admin123", wantAdmin: true},
		{name: "wrong password", user: "admin", pass: "nope"},
		{name: "wrong user", user: "root", pass: "admin123"},
		{name: "empty", user: "", pass: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			rec := httptest.NewRecorder()

			ok, err := m.Login(rec, httptest.NewRequest(http.MethodPost, "/admin/login", nil), tt.user, tt.pass)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdmin, ok)
			assert.Equal(t, tt.wantAdmin, principalOf(m, carry(rec, "/")).IsAdmin)
		})
	}
}

func TestLogoutClearsAdmin(t *testing.T) {
	m := newTestManager()

	login := httptest.NewRecorder()
	ok, err := m.Login(login, httptest.NewRequest(http.MethodPost, "/admin/login", nil), "admin", "admin123")
	require.NoError(t, err)
	require.True(t, ok)

	logout := httptest.NewRecorder()
	require.NoError(t, m.Logout(logout, carry(login, "/admin/logout")))

	assert.False(t, principalOf(m, carry(logout, "/")).IsAdmin)
}

func TestForgedCookieIsAnonymous(t *testing.T) {
	m := newTestManager()
	other := NewManager(Options{Secret: "another-secret-another-secret-xx", AdminUser: "admin", AdminPass: "admin123"})

	rec := httptest.NewRecorder()
	ok, err := other.Login(rec, httptest.NewRequest(http.MethodPost, "/admin/login", nil), "admin", "admin123")
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, principalOf(m, carry(rec, "/")).IsAdmin)
}

func TestFlashesArePoppedOnce(t *testing.T) {
	m := newTestManager()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register/1", nil)
	require.NoError(t, m.Flash(rec, req, LevelWarning, "Event registration full!"))

	next := httptest.NewRecorder()
	flashes, err := m.Flashes(next, carry(rec, "/events"))
	require.NoError(t, err)
	assert.Equal(t, []Flash{{Level: LevelWarning, Message: "Event registration full!"}}, flashes)

	flashes, err = m.Flashes(httptest.NewRecorder(), carry(next, "/events"))
	require.NoError(t, err)
	assert.Empty(t, flashes)
}
