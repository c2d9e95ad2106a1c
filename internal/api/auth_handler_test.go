package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func (s *testServer) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshTokenCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", refreshTokenCookieName)
	return nil
}

func (s *testServer) postWithCookie(t *testing.T, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, defaultProtection())

	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "/v1/profiles/alice", w.Header().Get("Location"))
	require.Equal(t, "alice", decode[registerResponse](t, w).Username)

	w = srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"another one"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, 4009, decode[errorBody](t, w).Code)

	w = srv.login(t, "alice", "correct horse")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[tokenResponse](t, w)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, 900, tokens.ExpiresIn)
	require.True(t, refreshCookie(t, w).HttpOnly)

	w = srv.do(t, http.MethodPost, "/v1/recipes", "Bearer "+tokens.AccessToken, `{"title":"Toast"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRegisterValidatesInput(t *testing.T) {
	srv := newTestServer(t, defaultProtection())

	for _, body := range []string{
		`{"username":"al","password":"correct horse"}`,
		`{"username":"alice","password":"short"}`,
		`{"username":"alice"}`,
		`{"username":"     ","password":"correct horse"}`,
		`{"username":" al ","password":"correct horse"}`,
	} {
		w := srv.do(t, http.MethodPost, "/v1/auth/register", "", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, defaultProtection())
	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Equal(t, http.StatusUnauthorized, srv.login(t, "alice", "wrong horse").Code)
	require.Equal(t, http.StatusUnauthorized, srv.login(t, "nobody", "correct horse").Code)

	count, err := srv.redis.Get(loginFailKey("alice"))
	require.NoError(t, err)
	require.Equal(t, "1", count)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	srv := newTestServer(t, LoginProtection{RateLimitPerHour: 100, LockThreshold: 3, LockTTL: 15 * time.Minute})
	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, srv.login(t, "alice", "wrong horse").Code)
	}
	require.True(t, srv.redis.Exists(loginLockKey("alice")))

	w = srv.login(t, "alice", "correct horse")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, 4029, decode[errorBody](t, w).Code)

	srv.redis.FastForward(16 * time.Minute)
	require.Equal(t, http.StatusOK, srv.login(t, "alice", "correct horse").Code)
	require.False(t, srv.redis.Exists(loginFailKey("alice")))
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestServer(t, LoginProtection{RateLimitPerHour: 2, LockThreshold: 100, LockTTL: time.Minute})
	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Equal(t, http.StatusOK, srv.login(t, "alice", "correct horse").Code)
	require.Equal(t, http.StatusOK, srv.login(t, " alice ", "correct horse").Code)
	require.Equal(t, http.StatusTooManyRequests, srv.login(t, "alice", "correct horse").Code)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	srv := newTestServer(t, defaultProtection())
	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.login(t, "alice", "correct horse")
	require.Equal(t, http.StatusOK, w.Code)
	first := refreshCookie(t, w)

	w = srv.postWithCookie(t, "/v1/auth/refresh", first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := refreshCookie(t, w)
	require.NotEqual(t, first.Value, second.Value)

	require.Equal(t, http.StatusUnauthorized, srv.postWithCookie(t, "/v1/auth/refresh", first).Code)

	w = srv.postWithCookie(t, "/v1/auth/logout", second)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusUnauthorized, srv.postWithCookie(t, "/v1/auth/refresh", second).Code)

	w = srv.do(t, http.MethodPost, "/v1/auth/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	srv := newTestServer(t, defaultProtection())
	bearer := srv.signUp(t, "alice")

	w := srv.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": strings.TrimPrefix(bearer, "Bearer "),
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t, defaultProtection())
	w := srv.do(t, http.MethodPost, "/v1/auth/register", "", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.login(t, "alice", "correct horse")
	require.Equal(t, http.StatusOK, w.Code)
	bearer := "Bearer " + decode[tokenResponse](t, w).AccessToken

	w = srv.do(t, http.MethodPost, "/v1/auth/password", bearer, map[string]string{
		"current_password": "correct horse",
		"new_password":     "battery staple",
		"confirm_password": "battery stapler",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/v1/auth/password", bearer, map[string]string{
		"current_password": "wrong horse",
		"new_password":     "battery staple",
		"confirm_password": "battery staple",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/v1/auth/password", bearer, map[string]string{
		"current_password": "correct horse",
		"new_password":     "battery staple",
		"confirm_password": "battery staple",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Equal(t, http.StatusUnauthorized, srv.login(t, "alice", "correct horse").Code)
	require.Equal(t, http.StatusOK, srv.login(t, "alice", "battery staple").Code)
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	count, err := incrWithTTL(ctx, client, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(30 * time.Second)
	count, err = incrWithTTL(ctx, client, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 30*time.Second, mr.TTL("k"))
}
