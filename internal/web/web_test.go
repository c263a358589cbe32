package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcal/internal/cache"
	"shiftcal/internal/config"
	"shiftcal/internal/layout"
	"shiftcal/internal/model"
	"shiftcal/internal/roster"
	"shiftcal/internal/scheduler"
	"shiftcal/internal/week"
)

type stubWeeks struct {
	err   error
	start time.Time
	days  int
	view  week.View
}

func (s *stubWeeks) Week(_ context.Context, start time.Time, days int, view week.View) (week.Week, error) {
	s.start, s.days, s.view = start, days, view
	if s.err != nil {
		return week.Week{}, s.err
	}
	if start.IsZero() {
		start = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	}
	shifts := []model.Shift{
		{ID: "a", RiderID: "r1", RiderName: "Ana", Type: model.ShiftMorning,
			StartAt: start.Add(12 * time.Hour), EndAt: start.Add(16 * time.Hour)},
		{ID: "b", RiderID: "r2", Type: model.ShiftNight,
			StartAt: start.Add(20 * time.Hour), EndAt: start.Add(26 * time.Hour)},
	}
	return week.Build(shifts, start, days, view, layout.DefaultOptions()), nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Capture.Output = filepath.Join(t.TempDir(), "week.png")
	return cfg
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(t), &stubWeeks{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

type stubRefresh struct {
	status scheduler.Status
	next   time.Time
}

func (s stubRefresh) Status() scheduler.Status { return s.status }
func (s stubRefresh) Next() time.Time { return s.next }

func TestHealth_RefreshStatus(t *testing.T) {
	s := NewServer(testConfig(t), &stubWeeks{}, nil)
	s.SetRefreshStatus(stubRefresh{
		status: scheduler.Status{
			LastRun:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			LastError: errors.New("view prime: feed down"),
			Runs:      3,
		},
		next: time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC),
	})

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "OK\n"))
	assert.Contains(t, body, "refresh_runs: 3\n")
	assert.Contains(t, body, "last_refresh: 2025-03-10T09:00:00Z\n")
	assert.Contains(t, body, "next_refresh: 2025-03-10T09:15:00Z\n")
	assert.Contains(t, body, "last_error: view prime: feed down\n")

	s.SetRefreshStatus(stubRefresh{})
	body = do(t, s.Handler(), http.MethodGet, "/health", "").Body.String()
	assert.Contains(t, body, "last_refresh: never\n")
	assert.NotContains(t, body, "last_error")
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := NewServer(cfg, &stubWeeks{}, nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/week", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/week", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/week", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBasicAuth_EmptyCredentialsDisable(t *testing.T) {
	cfg := testConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	h := NewServer(cfg, &stubWeeks{}, nil).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/week", "").Code)
}

const tenEvents = `{"containerWidthPx":200,"minCardWidthPx":30,"events":[
 {"id":"e0","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z","payload":{"n":0}},
 {"id":"e1","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e2","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e3","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e4","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e5","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e6","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e7","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e8","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"},
 {"id":"e9","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T11:00:00Z"}
]}`

func TestLayoutAPI_Deck(t *testing.T) {
	s := NewServer(testConfig(t), &stubWeeks{}, cache.NewMemory())
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/layout", tenEvents)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var body struct {
		Results []struct {
			ID      string          `json:"id"`
			Payload json.RawMessage `json:"payload"`
			Layout  map[string]any  `json:"layout"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 10)
	assert.Equal(t, "e0", body.Results[0].ID)
	assert.JSONEq(t, `{"n":0}`, string(body.Results[0].Payload))
	assert.Equal(t, "deck", body.Results[0].Layout["displayType"])
	assert.Equal(t, "0%", body.Results[0].Layout["left"])
	assert.Equal(t, float64(600), body.Results[0].Layout["top"])
	assert.Equal(t, float64(19), body.Results[9].Layout["zIndex"])

	rec = do(t, h, http.MethodPost, "/api/layout", tenEvents)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestLayoutAPI_Columns(t *testing.T) {
	h := NewServer(testConfig(t), &stubWeeks{}, nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/layout", `{"events":[
		{"id":"a","startAt":"2025-03-10T09:00:00Z","endAt":"2025-03-10T11:00:00Z"},
		{"id":"b","startAt":"2025-03-10T10:00:00Z","endAt":"2025-03-10T12:00:00Z"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"width":"50%"`)
	assert.Contains(t, rec.Body.String(), `"left":"50%"`)
	assert.Contains(t, rec.Body.String(), `"displayType":"columns"`)
}

func TestLayoutAPI_Empty(t *testing.T) {
	h := NewServer(testConfig(t), &stubWeeks{}, nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/layout", `{"events":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestLayoutAPI_BadRequests(t *testing.T) {
	h := NewServer(testConfig(t), &stubWeeks{}, nil).Handler()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing end", `{"events":[{"id":"a","startAt":"2025-03-10T09:00:00Z"}]}`},
		{"bad time", `{"events":[{"id":"a","startAt":"monday","endAt":"tuesday"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/layout", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/layout", "").Code)
}

func TestWeekAPI(t *testing.T) {
	weeks := &stubWeeks{}
	h := NewServer(testConfig(t), weeks, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/week?start=2025-03-10&days=3&view=prime", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, weeks.days)
	assert.Equal(t, week.ViewPrime, weeks.view)
	assert.Equal(t, "2025-03-10", weeks.start.Format(week.DateLayout))

	var wk week.Week
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wk))
	assert.Equal(t, week.PrimeHeight, wk.Height)
	require.Len(t, wk.Days, 3)
	require.Len(t, wk.Days[0].Events, 2)
	assert.Equal(t, 0, wk.Days[0].Events[0].Layout.Top)

	rec = do(t, h, http.MethodGet, "/api/week", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, weeks.start.IsZero())
	assert.Equal(t, 7, weeks.days)
	assert.Equal(t, week.ViewFull, weeks.view)
}

func TestWeekAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"bad start", "/api/week?start=10-03-2025", nil, http.StatusBadRequest},
		{"too many days", "/api/week?days=90", nil, http.StatusBadRequest},
		{"no sources", "/api/week", roster.ErrNoSources, http.StatusServiceUnavailable},
		{"upstream failure", "/api/week", errors.New("feed down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(testConfig(t), &stubWeeks{err: tt.err}, nil).Handler()
			rec := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWeekPage(t *testing.T) {
	h := NewServer(testConfig(t), &stubWeeks{}, nil).Handler()
	rec := do(t, h, http.MethodGet, "/week?start=2025-03-10&days=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	html := rec.Body.String()
	assert.Contains(t, html, `data-ready="true"`)
	assert.Contains(t, html, "Ana")
	assert.Contains(t, html, "12:00-16:00")
	assert.Contains(t, html, "top:720px;height:240px;left:0%;width:100%;z-index:10")
	assert.Contains(t, html, "continuation", "the night shift continues on the second day")
}

func TestPreview(t *testing.T) {
	cfg := testConfig(t)
	h := NewServer(cfg, &stubWeeks{}, nil).Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/preview.png", "").Code)

	require.NoError(t, os.WriteFile(cfg.Capture.Output, []byte("\x89PNG\r\n\x1a\n"), 0o644))
	rec := do(t, h, http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestNotFound(t *testing.T) {
	h := NewServer(testConfig(t), &stubWeeks{}, nil).Handler()
	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
