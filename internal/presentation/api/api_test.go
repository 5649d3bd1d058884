package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/metrics"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/session"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/ws"
	"github.com/hilthontt/cheahlytics/internal/persistence/dbtest"
	"github.com/hilthontt/cheahlytics/internal/persistence/repository"
	applicationsHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/applications"
	eventsHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/events"
	healthHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/health"
	trackerHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/tracker"
	usersHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/users"
	"github.com/hilthontt/cheahlytics/internal/usecases/accounts"
	"github.com/hilthontt/cheahlytics/internal/usecases/applications"
	"github.com/hilthontt/cheahlytics/internal/usecases/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	*httptest.Server
	db *gorm.DB
}

func newTestServer(t *testing.T, burst int) *testServer {
	t.Helper()

	gdb := dbtest.New(t)
	logger := logging.NewNop()
	m := metrics.New()

	users := repository.NewUserRepository(gdb)
	apps := repository.NewApplicationRepository(gdb)
	events := repository.NewEventRepository(gdb)

	core := ws.NewCore(events, logger, m.LiveSubscribers)
	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(cancel)

	cfg := configs.Config{
		HTTP:    configs.HTTPConfig{PublicURL: "http://stats.test"},
		Session: configs.SessionConfig{Secret: "test-secret-0123456789", CookieName: "sid", TTL: time.Hour},
	}
	sessions := session.NewManager(cfg.Session)
	accountUC := accounts.NewAccountUseCase(users, logger)

	tracker, err := trackerHandler.NewHandler(cfg.HTTP.PublicURL)
	require.NoError(t, err)

	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: burst, CacheTTL: time.Minute})
	t.Cleanup(func() { _ = limiter.Close() })

	app := NewApplication(
		cfg,
		Handlers{
			Events:       eventsHandler.NewHandler(ingestion.NewIngestionUseCase(apps, events, logger, ingestion.WithNotifiers(core), ingestion.WithMetrics(m))),
			Applications: applicationsHandler.NewHandler(applications.NewApplicationUseCase(apps, events, cfg.HTTP.PublicURL, logger), core, logger),
			Users:        usersHandler.NewHandler(accountUC, sessions, logger),
			Health:       healthHandler.NewHandler(nil),
			Tracker:      tracker,
		},
		accountUC,
		sessions,
		m,
		logger,
		limiter,
	)

	srv := httptest.NewServer(app.Mount())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, db: gdb}
}

func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func (s *testServer) eventCount(t *testing.T) int64 {
	t.Helper()

	var n int64
	require.NoError(t, s.db.Model(&domain.Event{}).Count(&n).Error)
	return n
}

func (s *testServer) seedApplication(t *testing.T, id int64, code int) {
	t.Helper()

	owner, err := domain.NewUser("seed@example.com", "password")
	require.NoError(t, err)
	require.NoError(t, s.db.Create(owner).Error)
	require.NoError(t, s.db.Create(&domain.Application{ID: id, Name: "Blog", URL: "blog.example.com", Code: code, UserID: owner.ID}).Error)
}

func assertCors(t *testing.T, resp *http.Response) {
	t.Helper()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestEvents_RecordScenario(t *testing.T) {
	s := newTestServer(t, 100)
	s.seedApplication(t, 7, 4242)
	c := s.client(t)

	resp, body := s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"Pageview","trackingCode":"7-4242"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assertCors(t, resp)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, "Pageview", ev["name"])
	assert.EqualValues(t, 7, ev["registeredApplicationId"])
	assert.EqualValues(t, 1, s.eventCount(t))

	resp, body = s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"Pageview","trackingCode":"7-9999"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `"Invalid Tracking Code"`, string(body))
	assertCors(t, resp)

	resp, body = s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"Pageview","trackingCode":"8-4242"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `"Unregistered Application"`, string(body))
	assertCors(t, resp)

	resp, body = s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"","trackingCode":"7-4242"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), `"errors"`)
	assertCors(t, resp)

	resp, _ = s.do(t, c, http.MethodPost, "/api/events", `garbage`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertCors(t, resp)

	assert.EqualValues(t, 1, s.eventCount(t))
}

func TestEvents_PreflightIsIdempotent(t *testing.T) {
	s := newTestServer(t, 1)
	c := s.client(t)

	var first http.Header
	for i := range 5 {
		req, err := http.NewRequest(http.MethodOptions, s.URL+"/api/events", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://somewhere.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")

		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Zero(t, resp.ContentLength)
		assertCors(t, resp)

		h := resp.Header.Clone()
		h.Del("Date")
		if i == 0 {
			first = h
			continue
		}
		assert.Equal(t, first, h)
	}

	assert.Zero(t, s.eventCount(t))
}

func TestEvents_OtherMethodsStillCarryCors(t *testing.T) {
	s := newTestServer(t, 10)

	resp, _ := s.do(t, s.client(t), http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assertCors(t, resp)
}

func TestEvents_RateLimited(t *testing.T) {
	s := newTestServer(t, 1)
	s.seedApplication(t, 1, 1)
	c := s.client(t)

	resp, _ := s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"Pageview","trackingCode":"1-1"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, c, http.MethodPost, "/api/events", `{"event":{"name":"Pageview","trackingCode":"1-1"}}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assertCors(t, resp)
	assert.EqualValues(t, 1, s.eventCount(t))
}

func TestEvents_RateLimitIgnoresClientHeaders(t *testing.T) {
	s := newTestServer(t, 1)
	s.seedApplication(t, 1, 1)
	c := s.client(t)

	created := 0
	for i := range 20 {
		req, err := http.NewRequest(http.MethodPost, s.URL+"/api/events", strings.NewReader(`{"event":{"name":"Pageview","trackingCode":"1-1"}}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-RateLimit-Key", fmt.Sprintf("key-%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))

		resp, err := c.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	}

	assert.Equal(t, 1, created)
	assert.EqualValues(t, 1, s.eventCount(t))
}

func signUp(t *testing.T, s *testServer, c *http.Client, email string) {
	t.Helper()

	resp, body := s.do(t, c, http.MethodPost, "/api/users", `{"user":{"email":"`+email+`","password":"password"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func createApp(t *testing.T, s *testServer, c *http.Client, name string) int64 {
	t.Helper()

	resp, body := s.do(t, c, http.MethodPost, "/api/applications", `{"registeredApplication":{"name":"`+name+`","url":"`+name+`.example.com"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var app struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &app))
	return app.ID
}

func TestManagement_Flow(t *testing.T) {
	s := newTestServer(t, 100)
	owner := s.client(t)
	intruder := s.client(t)
	anon := s.client(t)

	signUp(t, s, owner, "owner@example.com")
	signUp(t, s, intruder, "intruder@example.com")

	resp, _ := s.do(t, anon, http.MethodGet, "/api/applications", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	id := createApp(t, s, owner, "blog")
	path := "/api/applications/" + strconv.FormatInt(id, 10)

	resp, body := s.do(t, owner, http.MethodGet, "/api/applications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"blog"`)

	resp, body = s.do(t, owner, http.MethodGet, path+"/setup", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var setup struct {
		TrackingCode string `json:"trackingCode"`
		Snippet      string `json:"snippet"`
	}
	require.NoError(t, json.Unmarshal(body, &setup))
	assert.True(t, strings.HasPrefix(setup.TrackingCode, strconv.FormatInt(id, 10)+"-"))
	assert.Contains(t, setup.Snippet, "http://stats.test/cheahlytics.js")

	resp, _ = s.do(t, anon, http.MethodPost, "/api/events", `{"event":{"name":"Ad Click","trackingCode":"`+setup.TrackingCode+`"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, owner, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `{"name":"Ad Click","count":1}`)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp, body = s.do(t, intruder, method, path, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(body), "You are not authorized to do that!")
	}
	resp, _ = s.do(t, intruder, http.MethodPut, path, `{"registeredApplication":{"name":"x","url":"x.example.com"}}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, owner, http.MethodPut, path, `{"registeredApplication":{"name":"journal","url":"journal.example.com"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"journal"`)

	resp, _ = s.do(t, owner, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, s.eventCount(t))

	resp, _ = s.do(t, owner, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManagement_Audit(t *testing.T) {
	s := newTestServer(t, 100)
	owner := s.client(t)
	other := s.client(t)
	signUp(t, s, owner, "owner@example.com")
	signUp(t, s, other, "other@example.com")
	id := createApp(t, s, owner, "blog")
	path := "/api/applications/" + strconv.FormatInt(id, 10) + "/audit"

	resp, _ := s.do(t, other, http.MethodGet, path, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, owner, http.MethodGet, path+"?outcome=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, owner, http.MethodGet, path+"?outcome=recorded&from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, owner, http.MethodGet, path+"?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The test server runs without Mongo.
	resp, _ = s.do(t, owner, http.MethodGet, path, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSessions(t *testing.T) {
	s := newTestServer(t, 100)
	c := s.client(t)

	resp, _ := s.do(t, c, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	signUp(t, s, c, "me@example.com")

	resp, body := s.do(t, c, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"email":"me@example.com"`)
	assert.NotContains(t, string(body), "password")

	resp, _ = s.do(t, c, http.MethodDelete, "/api/sessions", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, c, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, c, http.MethodPost, "/api/sessions", `{"user":{"email":"me@example.com","password":"nope"}}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, c, http.MethodPost, "/api/sessions", `{"user":{"email":"ME@example.com","password":"password"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, c, http.MethodGet, "/api/sessions", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, s.client(t), http.MethodPost, "/api/users", `{"user":{"email":"me@example.com","password":"password"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "has already been taken")
}

func TestLiveFeed(t *testing.T) {
	s := newTestServer(t, 100)
	c := s.client(t)
	signUp(t, s, c, "owner@example.com")
	id := createApp(t, s, c, "shop")

	resp, body := s.do(t, c, http.MethodGet, "/api/applications/"+strconv.FormatInt(id, 10)+"/setup", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var setup struct {
		TrackingCode string `json:"trackingCode"`
	}
	require.NoError(t, json.Unmarshal(body, &setup))

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/applications/" + strconv.FormatInt(id, 10) + "/live"
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(mustParse(t, s.URL)) {
		header.Add("Cookie", ck.String())
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg ws.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.FeedReady, msg.Type)

	resp, _ = s.do(t, s.client(t), http.MethodPost, "/api/events", `{"event":{"name":"Product Purchase","trackingCode":"`+setup.TrackingCode+`"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.EventRecorded, msg.Type)
	assert.Equal(t, id, msg.ApplicationID)
	assert.Equal(t, "Product Purchase", msg.Data.(map[string]any)["name"])

	_, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
}

func TestTrackerScriptAndMetrics(t *testing.T) {
	s := newTestServer(t, 100)
	c := s.client(t)

	resp, body := s.do(t, c, http.MethodGet, "/cheahlytics.js", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"http://stats.test/api/events"`)

	resp, _ = s.do(t, c, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, c, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `cheahlytics_http_requests_total{method="GET",route="/cheahlytics.js",status="200"} 1`)
}
