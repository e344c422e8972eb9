package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/engine"
	mt "github.com/etesami/template-matching-demo/pkg/metric"
	"github.com/etesami/template-matching-demo/pkg/session"
	"github.com/etesami/template-matching-demo/pkg/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultAttemptLimit = 20

// Server serves the web API on top of a Scorer
type Server struct {
	Scorer   Scorer
	Sessions *Sessions
	Store    *store.Store // optional attempt history
	Metric   *mt.Metric

	// Timeout bounds each scoring call; zero means no limit
	Timeout time.Duration
}

type sessionResponse struct {
	ID     string           `json:"id"`
	State  session.State    `json:"state"`
	Result *api.PatchResult `json:"result,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Routes registers every endpoint, including /metrics, on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/pairs", s.listPairs)
	mux.HandleFunc("GET /api/pairs/{name}/matches", s.matches)
	mux.HandleFunc("GET /api/pairs/{name}/heatmap.png", s.heatmap)
	mux.HandleFunc("GET /api/pairs/{name}/detections.png", s.detections)
	mux.HandleFunc("GET /api/pairs/{name}/sweep.png", s.sweep)
	mux.HandleFunc("GET /api/pairs/{name}/summary", s.pairSummary)

	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("POST /api/sessions/{id}/move", s.move)
	mux.HandleFunc("POST /api/sessions/{id}/compute", s.compute)
	mux.HandleFunc("GET /api/sessions/{id}/comparison.png", s.comparison)
	mux.HandleFunc("GET /api/sessions/{id}/attempts", s.attempts)
	mux.HandleFunc("GET /api/sessions/{id}/best", s.bestAttempt)
	return mux
}

func (s *Server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.Timeout > 0 {
		return context.WithTimeout(r.Context(), s.Timeout)
	}
	return context.WithCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v\n", err)
	}
}

func writePNG(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// writeError maps errors onto status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownPair), errors.Is(err, ErrUnknownSession), errors.Is(err, store.ErrNoAttempts):
		code = http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrNotComputed):
		code = http.StatusBadRequest
	case errors.Is(err, ErrStaleSession):
		code = http.StatusConflict
	case errors.Is(err, ErrResponseTooLarge):
		code = http.StatusBadGateway
	case errors.Is(err, ErrMatcherUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	log.Printf("Request [%s %s] failed with [%d]: %v\n", r.Method, r.URL.Path, code, err)
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("invalid " + key + ": " + v)
	}
	return f, nil
}

func (s *Server) listPairs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	pairs, err := s.Scorer.Pairs(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) findPair(ctx context.Context, name string) (api.PairInfo, error) {
	pairs, err := s.Scorer.Pairs(ctx)
	if err != nil {
		return api.PairInfo{}, err
	}
	for _, p := range pairs {
		if p.Name == name {
			return p, nil
		}
	}
	return api.PairInfo{}, fmt.Errorf("%w: %s", engine.ErrUnknownPair, name)
}

func (s *Server) scoreMap(w http.ResponseWriter, r *http.Request) (*api.MapResult, bool) {
	threshold, err := queryFloat(r, "threshold", 0)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if threshold > 1 {
		writeError(w, r, badRequest("threshold must not exceed 1"))
		return nil, false
	}
	ctx, cancel := s.context(r)
	defer cancel()
	st := time.Now()
	res, err := s.Scorer.ScoreMap(ctx, r.PathValue("name"), threshold)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	addProcessingTime("http_score_map", s.Metric, st)
	return res, true
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.scoreMap(w, r); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) heatmap(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.scoreMap(w, r); ok {
		writePNG(w, res.Heatmap)
	}
}

func (s *Server) detections(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.scoreMap(w, r); ok {
		writePNG(w, res.Detections)
	}
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	alpha, err := queryFloat(r, "alpha", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	res, err := s.Scorer.Sweep(ctx, r.PathValue("name"), alpha)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Sweep-Position", strconv.Itoa(res.Position.X)+","+strconv.Itoa(res.Position.Y))
	w.Header().Set("X-Sweep-Score", strconv.FormatFloat(res.Score, 'f', 4, 64))
	writePNG(w, res.Frame)
}

func (s *Server) pairSummary(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusOK, api.PairSummary{Pair: r.PathValue("name")})
		return
	}
	sum, err := s.Store.PairSummary(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pair string `json:"pair"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid body: "+err.Error()))
		return
	}
	if req.Pair == "" {
		writeError(w, r, badRequest("pair is required"))
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	pair, err := s.findPair(ctx, req.Pair)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, st := s.Sessions.Create(pair)
	log.Printf("Created session [%s] for pair [%s]\n", id, pair.Name)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: st})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.Sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: st})
}

func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid body: "+err.Error()))
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, r, badRequest("x and y are required"))
		return
	}
	st, err := s.Sessions.Update(id, func(st session.State) session.State {
		return st.MoveTo(image.Pt(*req.X, *req.Y))
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: st})
}

// compute scores the patch at the session's current center and records the
// attempt. A move that lands while scoring wins; compute then answers 409.
func (s *Server) compute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.Sessions.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.context(r)
	defer cancel()
	start := time.Now()

	if _, ok := st.Best(); !ok {
		m, err := s.Scorer.BestMatch(ctx, st.Pair.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		best := image.Rectangle{Min: image.Pt(m.X, m.Y)}
		best.Max = best.Min.Add(st.Pair.TemplateSize())
		st = st.WithBest(best)
	}

	center := st.Center
	res, err := s.Scorer.ScorePatch(ctx, st.Pair.Name, center)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st = st.WithResult(res)
	if err := s.Sessions.CompareAndSet(id, center, st, res.Comparison); err != nil {
		writeError(w, r, err)
		return
	}

	s.Metric.AddAttempt(st.Pair.Name, res.Quality)
	if s.Store != nil {
		if _, err := s.Store.RecordAttempt(store.NewAttempt(id, st.Pair.Name, st.Center, res, st.Found)); err != nil {
			log.Printf("Error recording attempt for session [%s]: %v\n", id, err)
		}
	}
	addProcessingTime("http_compute", s.Metric, start)
	log.Printf("Session [%s] pair [%s] center [%d,%d] score [%.4f] quality [%s] found [%t]\n",
		id, st.Pair.Name, st.Center.X, st.Center.Y, res.Score, res.Quality, st.Found)
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: st, Result: res})
}

func (s *Server) comparison(w http.ResponseWriter, r *http.Request) {
	b, err := s.Sessions.Comparison(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePNG(w, b)
}

func (s *Server) attempts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Sessions.Get(id); err != nil {
		writeError(w, r, err)
		return
	}
	limit := defaultAttemptLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, badRequest("invalid limit: "+v))
			return
		}
		limit = n
	}
	if s.Store == nil {
		writeJSON(w, http.StatusOK, []api.Attempt{})
		return
	}
	list, err := s.Store.ListAttempts(id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []api.Attempt{}
	}
	writeJSON(w, http.StatusOK, list)
}

// bestAttempt returns the highest scoring recorded attempt of a session.
func (s *Server) bestAttempt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Sessions.Get(id); err != nil {
		writeError(w, r, err)
		return
	}
	if s.Store == nil {
		writeError(w, r, store.ErrNoAttempts)
		return
	}
	a, err := s.Store.BestAttempt(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
