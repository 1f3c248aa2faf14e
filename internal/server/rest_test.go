package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goevery/courier/internal/auth"
	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/realtime"
	"github.com/goevery/courier/internal/toast"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConnections struct {
	mu     sync.Mutex
	states map[realtime.Namespace]realtime.ConnectionState
}

func (c *fakeConnections) Connect(namespace realtime.Namespace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[namespace] = realtime.StateConnecting
}

func (c *fakeConnections) Disconnect(namespace realtime.Namespace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.states, namespace)
}

func (c *fakeConnections) State(namespace realtime.Namespace) realtime.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[namespace]; ok {
		return state
	}

	return realtime.StateDisconnected
}

func (c *fakeConnections) SocketId(realtime.Namespace) (string, bool) {
	return "", false
}

type testApp struct {
	store     *notification.Store
	presenter *toast.Presenter
	router    *mux.Router
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := zap.NewNop()
	clock := clockwork.NewFakeClock()

	store := notification.NewStore(logger, clock)
	presenter := toast.NewPresenter(logger, clock, store)
	t.Cleanup(presenter.Stop)

	authenticator := auth.NewAuthenticator("test-secret", []string{"test-api-key"})
	notificationHandler := handler.NewNotificationHandler(store, nil)
	toastHandler := handler.NewToastHandler(presenter)
	connectionHandler := handler.NewConnectionHandler(&fakeConnections{states: map[realtime.Namespace]realtime.ConnectionState{}})

	router := mux.NewRouter()
	NewRESTServer(logger, authenticator, notificationHandler, toastHandler, connectionHandler).Register(router)

	return &testApp{store, presenter, router}
}

func readerToken(t *testing.T) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "customer-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"aud":   "courier",
		"scope": []string{"read"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func (a *testApp) do(method string, path string, body string, credential string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	a.router.ServeHTTP(recorder, req)

	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &v))

	return v
}

func TestRESTServer_Notifications(t *testing.T) {
	t.Run("add, list and read", func(t *testing.T) {
		app := newTestApp(t)

		resp := app.do("POST", "/notifications", `{"title":"Order Confirmed","message":"Your order is confirmed","kind":"success"}`, "test-api-key")
		require.Equal(t, http.StatusCreated, resp.Code)
		created := decodeBody[notification.Notification](t, resp)
		assert.Equal(t, notification.DefaultDuration, created.Duration)

		resp = app.do("GET", "/notifications", "", readerToken(t))
		require.Equal(t, http.StatusOK, resp.Code)
		state := decodeBody[notification.State](t, resp)
		assert.Equal(t, 1, state.UnreadCount)
		assert.Equal(t, created.Id, state.Notifications[0].Id)

		resp = app.do("POST", "/notifications/"+created.Id+"/read", "", "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 0, decodeBody[notification.State](t, resp).UnreadCount)
	})

	t.Run("update and remove", func(t *testing.T) {
		app := newTestApp(t)
		id := app.store.Add(notification.Draft{Title: "a"}).Notifications[0].Id

		resp := app.do("PATCH", "/notifications/"+id, `{"title":"b","durationMs":0}`, "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)
		updated := decodeBody[notification.Notification](t, resp)
		assert.Equal(t, "b", updated.Title)
		assert.Equal(t, time.Duration(0), updated.Duration)

		resp = app.do("DELETE", "/notifications/"+id, "", "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 0, app.store.Len())

		resp = app.do("DELETE", "/notifications/"+id, "", "test-api-key")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "NotFound", string(decodeBody[errorResponse](t, resp).Error.Code))
	})

	t.Run("mark all and clear read", func(t *testing.T) {
		app := newTestApp(t)
		app.store.Add(notification.Draft{Title: "a"})
		app.store.Add(notification.Draft{Title: "b"})

		resp := app.do("POST", "/notifications/read", "", "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)

		app.store.Add(notification.Draft{Title: "c"})

		resp = app.do("DELETE", "/notifications?read=true", "", "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)
		state := decodeBody[notification.State](t, resp)
		require.Len(t, state.Notifications, 1)
		assert.Equal(t, "c", state.Notifications[0].Title)

		resp = app.do("DELETE", "/notifications", "", "test-api-key")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 0, app.store.Len())
	})

	t.Run("history disabled", func(t *testing.T) {
		app := newTestApp(t)

		resp := app.do("GET", "/notifications/history", "", readerToken(t))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		app := newTestApp(t)

		resp := app.do("POST", "/notifications", `{`, "test-api-key")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("read scope cannot write", func(t *testing.T) {
		app := newTestApp(t)

		resp := app.do("POST", "/notifications", `{"title":"x"}`, readerToken(t))
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("invalid api key", func(t *testing.T) {
		app := newTestApp(t)

		resp := app.do("GET", "/notifications", "", "invalid-api-key")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)

		resp = app.do("GET", "/notifications", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestRESTServer_Toasts(t *testing.T) {
	app := newTestApp(t)
	state := app.store.Add(notification.Draft{Title: "a", Duration: notification.Duration(0)})
	app.presenter.Render(state)
	id := state.Notifications[0].Id

	resp := app.do("GET", "/toasts", "", readerToken(t))
	require.Equal(t, http.StatusOK, resp.Code)
	toasts := decodeBody[[]toast.Toast](t, resp)
	require.Len(t, toasts, 1)
	assert.True(t, toasts[0].Visible)

	resp = app.do("POST", "/toasts/"+id+"/close", "", "test-api-key")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = app.do("POST", "/toasts/"+id+"/close", "", "test-api-key")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRESTServer_Connections(t *testing.T) {
	app := newTestApp(t)

	resp := app.do("POST", "/connections/chat", "", "test-api-key")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, realtime.StateConnecting, decodeBody[handler.ConnectionStatus](t, resp).State)

	resp = app.do("GET", "/connections", "", readerToken(t))
	require.Equal(t, http.StatusOK, resp.Code)
	statuses := decodeBody[[]handler.ConnectionStatus](t, resp)
	assert.Len(t, statuses, len(realtime.Namespaces))

	resp = app.do("DELETE", "/connections/chat", "", "test-api-key")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, realtime.StateDisconnected, decodeBody[handler.ConnectionStatus](t, resp).State)

	resp = app.do("POST", "/connections/payments", "", "test-api-key")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWithCORS(t *testing.T) {
	app := newTestApp(t)
	h := WithCORS(app.router, []string{"https://app.example.com"})

	req := httptest.NewRequest("OPTIONS", "/notifications", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, req)

	assert.Equal(t, "https://app.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/notifications", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Authorization", "Bearer test-api-key")

	recorder = httptest.NewRecorder()
	h.ServeHTTP(recorder, req)

	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginChecker(t *testing.T) {
	checker := NewOriginChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest("GET", "/stream", nil)
	assert.True(t, checker.Check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, checker.Check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, checker.Check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.True(t, NewOriginChecker([]string{"*"}).Check(req))
}
