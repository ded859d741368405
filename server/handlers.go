package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"Toonbeat/core/player"
	"Toonbeat/logger"
	"Toonbeat/model"
	"Toonbeat/repository"
	"Toonbeat/storage"
)

var (
	errTrackNotFound = errors.New("track not found")
	errBadRequest    = errors.New("bad request")
)

// APIHandler 处理所有API请求
type APIHandler struct {
	projects repository.ProjectRepository
	tracks   repository.TrackRepository
	resolver player.StreamResolver
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(projects repository.ProjectRepository, tracks repository.TrackRepository, resolver player.StreamResolver) *APIHandler {
	return &APIHandler{projects: projects, tracks: tracks, resolver: resolver}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrProjectNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, errTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListProjectsHandler 列出项目
func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetSnapshotHandler 获取项目快照
func (h *APIHandler) GetSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.projects.LoadSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PutSnapshotHandler 保存项目快照, replacing what was stored before.
func (h *APIHandler) PutSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	var snap model.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid snapshot: %v", errBadRequest, err))
		return
	}
	if err := validateSnapshot(snap); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.projects.SaveSnapshot(r.Context(), projectID, snap); err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("snapshot saved",
		logger.String("projectId", projectID),
		logger.Int("markers", len(snap.Markers)),
		logger.Int("notes", len(snap.Notes)))
	writeJSON(w, http.StatusOK, map[string]int{
		"markers": len(snap.Markers),
		"notes":   len(snap.Notes),
	})
}

func validateSnapshot(snap model.Snapshot) error {
	seen := make(map[string]bool)
	for _, m := range snap.Markers {
		if m.ID == "" || m.TrackID == "" {
			return fmt.Errorf("%w: marker needs id and trackId", errBadRequest)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate marker %s", errBadRequest, m.ID)
		}
		seen[m.ID] = true
	}
	for _, n := range snap.Notes {
		if n.ID == "" {
			return fmt.Errorf("%w: note needs id", errBadRequest)
		}
	}
	return nil
}

// DeleteProjectHandler 删除项目
func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTracksHandler 列出曲目 (?limit=&offset=)
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tracks, err := h.tracks.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

type streamResponse struct {
	TrackID string `json:"trackId"`
	URI     string `json:"uri"`
}

// StreamHandler resolves the playable stream handle of a track. With
// ?redirect=1 it redirects to the handle instead.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.tracks.GetByID(r.Context(), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if track == nil {
		writeError(w, r, fmt.Errorf("%w: %s", errTrackNotFound, trackID))
		return
	}

	uri, err := h.resolver.ResolveStreamHandle(r.Context(), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, uri, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, streamResponse{TrackID: trackID, URI: uri})
}
