package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/catalog"
)

const maxBodyBytes = 64 << 10

// ─── Catalog & Leaderboard ──────────────────────────────────────────────────

type catalogResponse struct {
	catalog.Content
	Badges []domain.BadgeDefinition `json:"badges"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	track, err := domain.ParseTrack(r.URL.Query().Get("track"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	badges, err := s.svc.Badges(track)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{
		Content: s.svc.Catalog().Content(),
		Badges:  badges,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(pageRequest{Limit: limit}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rows, err := s.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"institutions": rows})
}

// ─── User actions ───────────────────────────────────────────────────────────

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.userParams(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Login(r.Context(), req.UserID, track)
	s.writeResult(w, r, res, res.Effects, err)
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.refParams(w, r, "missionID")
	if !ok {
		return
	}
	res, err := s.svc.CompleteMission(r.Context(), req.UserID, track, req.Ref)
	s.writeResult(w, r, res, res.Effects, err)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	ref, track, ok := s.refParams(w, r, "quizID")
	if !ok {
		return
	}
	var body struct {
		Answers []int `json:"answers"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := quizRequest{refRequest: ref, Answers: body.Answers}
	if err := validate.Struct(req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.FinishQuiz(r.Context(), req.UserID, track, req.Ref, req.Answers)
	s.writeResult(w, r, res, res.Effects, err)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.refParams(w, r, "challengeID")
	if !ok {
		return
	}
	res, err := s.svc.JoinChallenge(r.Context(), req.UserID, track, req.Ref)
	s.writeResult(w, r, res, res.Effects, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.userParams(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Refresh(r.Context(), req.UserID, track)
	s.writeResult(w, r, res, res.Effects, err)
}

// ─── User queries ───────────────────────────────────────────────────────────

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.userParams(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Progress(r.Context(), req.UserID, track)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	user, track, ok := s.userParams(w, r)
	if !ok {
		return
	}
	weeks, err := queryInt(r, "weeks")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(heatmapRequest{userRequest: user, Weeks: weeks}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	hm, err := s.svc.Heatmap(r.Context(), user.UserID, track, weeks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hm)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	req, track, ok := s.userParams(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(pageRequest{Limit: limit}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 20
	}
	items, err := s.svc.Activity(r.Context(), req.UserID, track, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": items})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeResult answers an action: 422 when the engine rejected the event,
// 200 otherwise. The body always carries the effects.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, v any, fx domain.Effects, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if fx.Rejected {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, v)
}

// userParams reads and validates {userID} and ?track=.
func (s *Server) userParams(w http.ResponseWriter, r *http.Request) (userRequest, domain.Track, bool) {
	req := userRequest{
		UserID: chi.URLParam(r, "userID"),
		Track:  r.URL.Query().Get("track"),
	}
	track, err := domain.ParseTrack(req.Track)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, "", false
	}
	req.Track = string(track)
	if err := validate.Struct(req); err != nil {
		s.writeServiceError(w, r, err)
		return req, "", false
	}
	return req, track, true
}

// refParams is userParams plus a content id path parameter.
func (s *Server) refParams(w http.ResponseWriter, r *http.Request, param string) (refRequest, domain.Track, bool) {
	user, track, ok := s.userParams(w, r)
	if !ok {
		return refRequest{}, "", false
	}
	req := refRequest{userRequest: user, Ref: chi.URLParam(r, param)}
	if err := validate.Struct(req); err != nil {
		s.writeServiceError(w, r, err)
		return req, "", false
	}
	return req, track, true
}

// queryInt parses an optional integer query parameter; absent is 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
