package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shiftcal/internal/cache"
	"shiftcal/internal/layout"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/roster"
	"shiftcal/internal/week"
)

const (
	maxLayoutBody   = 1 << 20
	maxLayoutEvents = 5000
	maxWeekDays     = 31
	layoutCacheTTL  = 10 * time.Minute
)

// layoutRequest is the body of POST /api/layout. Zero geometry fields
// fall back to the configured defaults.
type layoutRequest struct {
	Events           []layout.Event[json.RawMessage] `json:"events"`
	ContainerWidthPx float64                         `json:"containerWidthPx,omitempty"`
	MinCardWidthPx   float64                         `json:"minCardWidthPx,omitempty"`
	DeckOffsetPx     float64                         `json:"deckOffsetPx,omitempty"`
	MinHeightMinutes int                             `json:"minHeightMinutes,omitempty"`
	Midnight         string                          `json:"midnight,omitempty"`
	Expand           *bool                           `json:"expand,omitempty"`
}

type layoutResponse struct {
	Results []layout.Result[json.RawMessage] `json:"results"`
}

func (req layoutRequest) options(base layout.Options) layout.Options {
	if req.ContainerWidthPx > 0 {
		base.ContainerWidthPx = req.ContainerWidthPx
	}
	if req.MinCardWidthPx > 0 {
		base.MinCardWidthPx = req.MinCardWidthPx
	}
	if req.DeckOffsetPx > 0 {
		base.DeckOffsetPx = req.DeckOffsetPx
	}
	if req.MinHeightMinutes > 0 {
		base.MinHeightMinutes = req.MinHeightMinutes
	}
	if req.Midnight != "" {
		base.Midnight = layout.MidnightPolicy(req.Midnight)
	}
	if req.Expand != nil {
		base.Expand = *req.Expand
	}
	return base
}

// handleLayout runs the engine on one day of caller-supplied events.
//
// POST /api/layout
//
//	{"events":[{"id":"a","startAt":"...","endAt":"...","payload":{...}}],
//	 "containerWidthPx":200,"minCardWidthPx":30}
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req layoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLayoutBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Events) > maxLayoutEvents {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d events per request", maxLayoutEvents))
		return
	}
	for i, ev := range req.Events {
		if ev.StartAt.IsZero() || ev.EndAt.IsZero() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("event %d: startAt and endAt are required", i))
			return
		}
	}

	opts := req.options(s.layoutOptions())
	opts.Location = s.loc

	key := cache.Key("layout", req, s.loc.String(), s.layoutOptions())
	var resp layoutResponse
	if err := cache.GetJSON(ctx, s.cache, key, &resp); err == nil {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, resp)
		return
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		appLog.Error("layout cache read failed", err)
	}

	resp.Results = layout.Compute(req.Events, opts)
	if err := cache.SetJSON(ctx, s.cache, key, resp, layoutCacheTTL); err != nil {
		appLog.Error("layout cache write failed", err)
	}

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, resp)
}

// handleWeek returns the laid-out week grid built from the roster sources.
//
// GET /api/week?start=2025-03-10&days=7&view=prime
//   - start: first day (default: start of the current week)
//   - days:  number of day columns (default from config, max 31)
//   - view:  full or prime
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	wk, status, err := s.loadWeek(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) loadWeek(r *http.Request) (week.Week, int, error) {
	q := r.URL.Query()

	var start time.Time
	if v := q.Get("start"); v != "" {
		t, err := time.ParseInLocation(week.DateLayout, v, s.loc)
		if err != nil {
			return week.Week{}, http.StatusBadRequest, errors.New("start must be YYYY-MM-DD")
		}
		start = t
	}

	days := parseIntDefault(q.Get("days"), s.cfg.Days)
	if days <= 0 || days > maxWeekDays {
		return week.Week{}, http.StatusBadRequest, fmt.Errorf("days must be between 1 and %d", maxWeekDays)
	}

	view := week.ParseView(s.cfg.View)
	if v := q.Get("view"); v != "" {
		view = week.ParseView(v)
	}

	if s.weeks == nil {
		return week.Week{}, http.StatusServiceUnavailable, roster.ErrNoSources
	}
	wk, err := s.weeks.Week(r.Context(), start, days, view)
	if err != nil {
		appLog.Error("week build failed", err)
		if errors.Is(err, roster.ErrNoSources) {
			return week.Week{}, http.StatusServiceUnavailable, err
		}
		return week.Week{}, http.StatusBadGateway, errors.New("failed to load roster")
	}
	return wk, http.StatusOK, nil
}
