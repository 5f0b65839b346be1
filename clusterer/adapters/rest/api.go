package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/adapters/rest/middleware"
	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, code int, reply any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Error("cannot encode reply", "error", err)
	}
}

// writeError maps domain errors to http codes.
func writeError(log *slog.Logger, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrBadArguments):
		code = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, core.ErrExternalService):
		code = http.StatusBadGateway
	case errors.Is(err, core.ErrNotConfigured):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	default:
		msg = "internal error"
	}

	if code >= http.StatusInternalServerError {
		log.Error("request failed", "code", code, "error", err)
	} else {
		log.Warn("request rejected", "code", code, "error", err)
	}
	writeJSON(log, w, code, ErrorResponse{Error: msg})
}

func closeBody(log *slog.Logger, r *http.Request) {
	if err := r.Body.Close(); err != nil {
		log.Error("cannot close request body", "error", err)
	}
}

type PingResponse struct {
	Replies map[string]string `json:"replies"`
}

func NewPingHandler(log *slog.Logger, pingers map[string]core.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := PingResponse{
			Replies: make(map[string]string, len(pingers)),
		}
		for name, pinger := range pingers {
			if err := pinger.Ping(r.Context()); err != nil {
				reply.Replies[name] = "unavailable"
				log.Error("one of services is not available", "service", name, "error", err)
				continue
			}
			reply.Replies[name] = "ok"
		}
		writeJSON(log, w, http.StatusOK, reply)
	}
}

type PhraseDTO struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count" validate:"gte=0"`
}

type ClusterRequest struct {
	Phrases         []PhraseDTO `json:"phrases" validate:"required,min=1,max=10000,dive"`
	Mode            string      `json:"mode"`
	UseGenerative   bool        `json:"useGenerative"`
	RegionNames     []string    `json:"regionNames" validate:"max=500"`
	SelectedIntents []string    `json:"selectedIntents" validate:"dive,oneof=commercial informational general"`
	ProjectID       int64       `json:"projectId" validate:"gte=0"`
}

type ClusterDTO struct {
	Name         string      `json:"cluster_name"`
	Intent       string      `json:"intent"`
	Phrases      []PhraseDTO `json:"phrases"`
	PhrasesCount int         `json:"phrases_count"`
	TotalCount   int         `json:"total_count"`
	AvgWords     float64     `json:"avg_words"`
	MaxFrequency int         `json:"max_frequency"`
	MinFrequency int         `json:"min_frequency"`
}

type MinusCategoryDTO struct {
	Name        string      `json:"name"`
	Phrases     []PhraseDTO `json:"phrases"`
	Count       int         `json:"count"`
	TotalVolume int         `json:"total_volume"`
}

type ClusterResponse struct {
	ID             string                      `json:"id"`
	Mode           string                      `json:"mode"`
	Source         string                      `json:"source"`
	Clusters       []ClusterDTO                `json:"clusters"`
	MinusWords     map[string]MinusCategoryDTO `json:"minusWords,omitempty"`
	FallbackReason string                      `json:"fallback_reason,omitempty"`
	ProjectID      int64                       `json:"projectId,omitempty"`
}

func toPhraseDTOs(phrases []core.Phrase) []PhraseDTO {
	out := make([]PhraseDTO, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, PhraseDTO{Phrase: p.Text, Count: p.Count})
	}
	return out
}

func newClusterResponse(res core.Result) ClusterResponse {
	reply := ClusterResponse{
		ID:             res.ID,
		Mode:           string(res.Mode),
		Source:         string(res.Source),
		Clusters:       make([]ClusterDTO, 0, len(res.Clusters)),
		FallbackReason: res.FallbackReason,
	}
	for _, c := range res.Clusters {
		reply.Clusters = append(reply.Clusters, ClusterDTO{
			Name:         c.Name,
			Intent:       string(c.Intent),
			Phrases:      toPhraseDTOs(c.Phrases),
			PhrasesCount: len(c.Phrases),
			TotalCount:   c.TotalCount,
			AvgWords:     c.Stats.AvgWordCount,
			MaxFrequency: c.Stats.MaxFrequency,
			MinFrequency: c.Stats.MinFrequency,
		})
	}
	if len(res.MinusWords) > 0 {
		reply.MinusWords = make(map[string]MinusCategoryDTO, len(res.MinusWords))
		for key, cat := range res.MinusWords {
			reply.MinusWords[key] = MinusCategoryDTO{
				Name:        cat.Name,
				Phrases:     toPhraseDTOs(cat.Phrases),
				Count:       len(cat.Phrases),
				TotalVolume: cat.TotalVolume,
			}
		}
	}
	return reply
}

// NewClusterHandler clusters the posted phrases. With projectId set the
// result is also stored for the authenticated user.
func NewClusterHandler(log *slog.Logger, v *Validator, clusterer core.Clusterer, projects core.Projects) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(log, r)

		var req ClusterRequest
		if err := decode(r, v, &req); err != nil {
			writeError(log, w, err)
			return
		}

		userID, authorized := middleware.UserID(r.Context())
		if req.ProjectID > 0 && !authorized {
			writeJSON(log, w, http.StatusUnauthorized, ErrorResponse{Error: "user required to save results"})
			return
		}

		phrases := make([]core.Phrase, 0, len(req.Phrases))
		for _, p := range req.Phrases {
			phrases = append(phrases, core.Phrase{Text: p.Phrase, Count: p.Count})
		}

		res, err := clusterer.Cluster(r.Context(), core.ClusterRequest{
			Phrases:         phrases,
			Mode:            core.Mode(req.Mode),
			UseGenerative:   req.UseGenerative,
			RegionNames:     req.RegionNames,
			SelectedIntents: req.SelectedIntents,
		})
		if err != nil {
			writeError(log, w, err)
			return
		}

		reply := newClusterResponse(res)
		if req.ProjectID > 0 {
			if err := projects.SaveResult(r.Context(), userID, req.ProjectID, res); err != nil {
				writeError(log, w, err)
				return
			}
			reply.ProjectID = req.ProjectID
		}
		writeJSON(log, w, http.StatusOK, reply)
	}
}

type CollectRequest struct {
	Phrase  string `json:"phrase" validate:"required,max=200"`
	Regions []int  `json:"regions" validate:"max=50,dive,gt=0"`
}

type CollectResponse struct {
	Phrases []PhraseDTO `json:"phrases"`
	Total   int         `json:"total"`
}

func NewCollectHandler(log *slog.Logger, v *Validator, collector core.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(log, r)

		var req CollectRequest
		if err := decode(r, v, &req); err != nil {
			writeError(log, w, err)
			return
		}

		phrases, err := collector.Collect(r.Context(), req.Phrase, req.Regions)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, CollectResponse{
			Phrases: toPhraseDTOs(phrases),
			Total:   len(phrases),
		})
	}
}

type RegionsResponse struct {
	Regions []core.Region `json:"regions"`
}

func NewRegionsHandler(log *slog.Logger, collector core.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regions, err := collector.Regions(r.Context())
		if err != nil {
			writeError(log, w, err)
			return
		}
		if regions == nil {
			regions = []core.Region{}
		}
		writeJSON(log, w, http.StatusOK, RegionsResponse{Regions: regions})
	}
}

type SuggestMinusRequest struct {
	Phrases []string `json:"phrases" validate:"required,min=1,max=10000"`
}

type SuggestMinusResponse struct {
	SuggestedMinusWords []string `json:"suggestedMinusWords"`
	AnalyzedCount       int      `json:"analyzedCount"`
	TotalCount          int      `json:"totalCount"`
	Source              string   `json:"source"`
}

func NewSuggestMinusHandler(log *slog.Logger, v *Validator, suggester core.Suggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(log, r)

		var req SuggestMinusRequest
		if err := decode(r, v, &req); err != nil {
			writeError(log, w, err)
			return
		}

		s, err := suggester.SuggestMinusWords(r.Context(), req.Phrases)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, SuggestMinusResponse{
			SuggestedMinusWords: s.Words,
			AnalyzedCount:       s.Analyzed,
			TotalCount:          s.Total,
			Source:              string(s.Source),
		})
	}
}

type ClusterNamesRequest struct {
	Keywords []string `json:"keywords" validate:"required,min=1,max=10000"`
}

type ClusterNamesResponse struct {
	ClusterNames  []string `json:"clusterNames"`
	TotalKeywords int      `json:"totalKeywords"`
}

func NewClusterNamesHandler(log *slog.Logger, v *Validator, suggester core.Suggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(log, r)

		var req ClusterNamesRequest
		if err := decode(r, v, &req); err != nil {
			writeError(log, w, err)
			return
		}

		names, err := suggester.SuggestClusterNames(r.Context(), req.Keywords)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusOK, ClusterNamesResponse{
			ClusterNames:  names,
			TotalKeywords: len(req.Keywords),
		})
	}
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type CreateProjectResponse struct {
	ID int64 `json:"id"`
}

// NewCreateProjectHandler expects the user in the request context.
func NewCreateProjectHandler(log *slog.Logger, v *Validator, projects core.Projects) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(log, r)

		var req CreateProjectRequest
		if err := decode(r, v, &req); err != nil {
			writeError(log, w, err)
			return
		}

		userID, _ := middleware.UserID(r.Context())
		id, err := projects.CreateProject(r.Context(), userID, req.Name)
		if err != nil {
			writeError(log, w, err)
			return
		}
		writeJSON(log, w, http.StatusCreated, CreateProjectResponse{ID: id})
	}
}

func NewProjectResultsHandler(log *slog.Logger, projects core.Projects) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(log, w, http.StatusBadRequest, ErrorResponse{Error: "invalid project id"})
			return
		}

		userID, _ := middleware.UserID(r.Context())
		res, err := projects.StoredResult(r.Context(), userID, id)
		if err != nil {
			writeError(log, w, err)
			return
		}
		reply := newClusterResponse(res)
		reply.ProjectID = id
		writeJSON(log, w, http.StatusOK, reply)
	}
}
