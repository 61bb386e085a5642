package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db/dbtest"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/repository"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
)

type testServer struct {
	t *testing.T
	s *HTTPServer
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		BcryptCost:  bcrypt.MinCost,
		CORSOrigins: "*",
		BodyLimit:   1 << 20,
	}
	for _, m := range mutate {
		m(cfg)
	}

	gdb := dbtest.New(t)
	repo := repository.New(gdb)
	l := zap.NewNop().Sugar()
	auth := service.NewAuth(repo, service.NopSessionCache{}, cfg, l)
	board := service.NewBoard(repo, l)
	return &testServer{t: t, s: New(cfg, auth, board, gdb, l)}
}

// do sends body (marshalled when not a string) and decodes a JSON reply into out.
func (ts *testServer) do(method, target, token string, body interface{}, out interface{}) int {
	ts.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := ts.s.App().Test(req, -1)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, target)
	}
	return resp.StatusCode
}

// login registers email and returns a fresh token.
func (ts *testServer) login(email string) string {
	ts.t.Helper()
	creds := AuthReq{Email: email, Password: "secret"}
	require.Equal(ts.t, http.StatusCreated, ts.do(http.MethodPost, "/api/auth/register", "", creds, nil))

	resp := LoginResp{}
	require.Equal(ts.t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/login", "", creds, &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func (ts *testServer) topics(token string) []TopicResp {
	ts.t.Helper()
	var topics []TopicResp
	require.Equal(ts.t, http.StatusOK, ts.do(http.MethodGet, "/api/topics", token, nil, &topics))
	return topics
}

func (ts *testServer) notes(token string) []NoteResp {
	ts.t.Helper()
	var notes []NoteResp
	require.Equal(ts.t, http.StatusOK, ts.do(http.MethodGet, "/api/notes", token, nil, &notes))
	return notes
}

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))

	assert.JSONEq(t, `{"email": "a"}`, string(censorBody([]byte(`{"email": "a"}`))))
	assert.Equal(t, `"<unparsable>"`, string(censorBody([]byte(`not json`))))
}

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", tokenFromHeader("abc"))
	assert.Equal(t, "abc", tokenFromHeader("Bearer abc"))
	assert.Equal(t, "abc", tokenFromHeader("bearer  abc "))
	assert.Equal(t, "", tokenFromHeader(""))
	assert.Equal(t, "Bearer", tokenFromHeader("Bearer"))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	creds := AuthReq{Email: "a@example.com", Password: "secret"}

	user := UserResp{}
	assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/auth/register", "", creds, &user))
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotZero(t, user.ID)

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/auth/register", "", creds, &errResp))
	assert.Equal(t, "CONFLICT", errResp.Code)
	assert.Equal(t, "email already registered", errResp.Error)

	login := LoginResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/login", "", creds, &login))
	assert.Equal(t, "a@example.com", login.Email)
	assert.NotEmpty(t, login.Token)

	wrong := AuthReq{Email: "a@example.com", Password: "nope"}
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/auth/login", "", wrong, &errResp))
	assert.Equal(t, "INVALID_CREDENTIALS", errResp.Code)

	me := UserResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/auth/me", login.Token, nil, &me))
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/auth/me", "Bearer "+login.Token, nil, nil))
}

func TestRegisterInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/register", "", `{"email": "a@example.com"}`, &errResp))
	assert.Equal(t, "INVALID_INPUT", errResp.Code)
	assert.Equal(t, "password is required", errResp.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/auth/register", "", `{"email":`, &errResp))
	assert.Equal(t, "invalid JSON body", errResp.Error)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login("a@example.com")

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/auth/logout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/notes", token, nil, nil))
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/notes"},
		{http.MethodPost, "/api/notes"},
		{http.MethodPut, "/api/notes?id=1"},
		{http.MethodDelete, "/api/notes?id=1"},
		{http.MethodGet, "/api/topics"},
		{http.MethodPost, "/api/topics"},
		{http.MethodPut, "/api/topics?id=1"},
		{http.MethodDelete, "/api/topics?id=1"},
		{http.MethodPost, "/api/topics/join"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/auth/logout"},
	} {
		for _, token := range []string{"", "bogus"} {
			errResp := ErrorResp{}
			status := ts.do(route.method, route.path, token, nil, &errResp)
			assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
			assert.Equal(t, "UNAUTHENTICATED", errResp.Code)
		}
	}
}

func TestTopics(t *testing.T) {
	ts := newTestServer(t)
	a := ts.login("a@example.com")
	b := ts.login("b@example.com")

	aTopics := ts.topics(a)
	require.Len(t, aTopics, 1)
	general := aTopics[0]
	assert.Equal(t, service.DefaultTopicName, general.Name)

	created := TopicResp{}
	assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/topics", a, TopicReq{Name: strings.Repeat("n", 20)}, &created))
	assert.Len(t, created.Members, 1)
	assert.Len(t, ts.topics(a), 2)

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/topics", a, TopicReq{Name: strings.Repeat("n", 21)}, &errResp))
	assert.Equal(t, "name must be at most 20 characters", errResp.Error)

	padded := TopicResp{}
	assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/topics", a, TopicReq{Name: "  " + strings.Repeat("p", 20) + " "}, &padded))
	assert.Equal(t, strings.Repeat("p", 20), padded.Name)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/topics", a, TopicReq{Name: "   "}, &errResp))
	assert.Equal(t, "name is required", errResp.Error)

	joined := TopicResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/topics/join", b, JoinReq{Code: general.ShareCode}, &joined))
	assert.Len(t, joined.Members, 2)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/topics/join", b, JoinReq{Code: general.ShareCode}, &joined))
	assert.Len(t, joined.Members, 2)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/topics/join", b, JoinReq{Code: "ZZZZZZZZ"}, nil))

	renamePath := "/api/topics?id=" + itoa(general.ID)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, renamePath, b, TopicReq{Name: "Mine"}, &errResp))
	assert.Equal(t, "FORBIDDEN", errResp.Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, renamePath, b, nil, nil))

	renamed := TopicResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, renamePath, a, TopicReq{Name: "Work"}, &renamed))
	assert.Equal(t, "Work", renamed.Name)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/topics?id=abc", a, TopicReq{Name: "Work"}, nil))
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/topics", a, TopicReq{Name: "Work"}, nil))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, renamePath, a, nil, nil))
	assert.Len(t, ts.topics(a), 2)
	assert.Len(t, ts.topics(b), 1)
}

func TestNotes(t *testing.T) {
	ts := newTestServer(t)
	a := ts.login("a@example.com")
	b := ts.login("b@example.com")
	c := ts.login("c@example.com")
	general := ts.topics(a)[0]

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/topics/join", b, JoinReq{Code: general.ShareCode}, nil))

	note := NoteResp{}
	assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/notes", a, map[string]interface{}{
		"title":   "plan",
		"content": "ship it",
		"topicId": general.ID,
	}, &note))
	assert.Equal(t, "yellow", note.Color)
	assert.Equal(t, 250.0, note.Width)
	require.NotNil(t, note.TopicID)
	assert.Equal(t, general.ID, *note.TopicID)

	assert.Len(t, ts.notes(a), 1)
	assert.Len(t, ts.notes(b), 1)
	assert.Empty(t, ts.notes(c))

	path := "/api/notes?id=" + itoa(note.ID)

	moved := NoteResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, path, b, map[string]float64{"x": 10, "y": 20, "width": 300, "height": 200}, &moved))
	assert.Equal(t, 10.0, moved.X)
	assert.Equal(t, 300.0, moved.Width)
	assert.Equal(t, "plan", moved.Title)

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPut, path, b, map[string]string{"title": "mine"}, &errResp))
	assert.Equal(t, "FORBIDDEN", errResp.Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, path, b, nil, nil))

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, path, c, map[string]float64{"x": 1}, nil))
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, c, nil, nil))

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, path, a, map[string]string{"color": "purple"}, &errResp))
	assert.Equal(t, "color must be one of yellow, blue, green, red", errResp.Error)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, path, a, `{}`, nil))

	edited := NoteResp{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPut, path, a, map[string]string{"title": "plan v2", "color": "blue"}, &edited))
	assert.Equal(t, "plan v2", edited.Title)
	assert.Equal(t, "blue", edited.Color)
	assert.Equal(t, 10.0, edited.X)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodDelete, path, a, nil, nil))
	assert.Empty(t, ts.notes(b))
}

func TestCreateNoteValidation(t *testing.T) {
	ts := newTestServer(t)
	a := ts.login("a@example.com")
	b := ts.login("b@example.com")
	bTopic := ts.topics(b)[0]

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/notes", a, map[string]string{"title": "", "content": "x", "color": "red"}, &errResp))
	assert.Equal(t, "title is required", errResp.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/notes", a, map[string]interface{}{"title": "t", "width": -1}, nil))

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/notes", a, map[string]interface{}{"title": "t", "topicId": bTopic.ID}, nil))
}

func TestDeleteTopicDetachesNotes(t *testing.T) {
	ts := newTestServer(t)
	a := ts.login("a@example.com")
	general := ts.topics(a)[0]

	note := NoteResp{}
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/notes", a, map[string]interface{}{"title": "t", "topicId": general.ID}, &note))
	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/topics?id="+itoa(general.ID), a, nil, nil))

	notes := ts.notes(a)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
	assert.Nil(t, notes[0].TopicID)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]bool{}
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/health", "", nil, &body))
	assert.True(t, body["ok"])
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/ready", "", nil, &body))
	assert.True(t, body["ok"])

	sqlDB, err := ts.s.gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/api/ready", "", nil, &body))
	assert.False(t, body["ok"])
}

func TestRequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := ts.s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err = ts.s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PUT")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp, err = ts.s.App().Test(req, -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	errResp := ErrorResp{}
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/nope", "", nil, &errResp))
	assert.Equal(t, "NOT_FOUND", errResp.Code)
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>notely</h1>"), 0o600))
	ts := newTestServer(t, func(cfg *config.Config) { cfg.StaticDir = dir })

	resp, err := ts.s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "notely")

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/health", "", nil, nil))
}

func TestMapError(t *testing.T) {
	status, code, msg := mapError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL", code)
	assert.Equal(t, "internal server error", msg)

	status, code, _ = mapError(service.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", code)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
