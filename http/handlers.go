package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"inferd/db"
	"inferd/monitoring"
	"inferd/serving"
)

// Handler holds the request handlers and their dependencies. Everything is
// injected at construction; handlers keep no mutable state of their own.
type Handler struct {
	svc    *serving.Service
	store  *db.Store
	hub    *monitoring.Hub
	logger *zap.Logger
}

// NewHandler 创建处理器。store和hub可以为nil
func NewHandler(svc *serving.Service, store *db.Store, hub *monitoring.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, store: store, hub: hub, logger: logger}
}

// Register 注册所有路由
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/predict", h.handlePredict)
	mux.HandleFunc("/predict/batch", h.handlePredictBatch)
	mux.HandleFunc("/model/info", h.handleModelInfo)
	mux.HandleFunc("/predictions", h.handleRecentPredictions)
	mux.HandleFunc("/ws/monitor", h.handleMonitor)
	mux.HandleFunc("/", h.handleNotFound)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, h.svc.Health())
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, serving.NewValidationError("failed to read request body", nil))
		return
	}

	resp, verr := h.svc.PredictOne(body)
	if verr != nil {
		respondError(w, verr)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, serving.NewValidationError("failed to read request body", nil))
		return
	}

	resp, verr := h.svc.PredictBatch(body)
	if verr != nil {
		respondError(w, verr)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	info, verr := h.svc.ModelInfo()
	if verr != nil {
		respondError(w, verr)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleRecentPredictions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows := []db.PredictionRow{}
	if h.store != nil {
		var err error
		rows, err = h.store.RecentPredictions(limit)
		if err != nil {
			h.logger.Error("recent predictions query failed", zap.Error(err))
			respondError(w, serving.NewInternalError(err))
			return
		}
		if rows == nil {
			rows = []db.PredictionRow{}
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"predictions": rows,
		"count":       len(rows),
		"success":     true,
	})
}

func (h *Handler) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.hub == nil {
		respondError(w, serving.NewRouteNotFoundError(r.URL.Path))
		return
	}
	h.hub.ServeWS(w, r)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, serving.NewRouteNotFoundError(r.URL.Path))
}

// requireMethod 检查HTTP方法，不匹配时返回结构化405响应
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		respondError(w, serving.NewMethodNotAllowedError(r.Method))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err *serving.Error) {
	respondJSON(w, err.HTTPStatus(), err.Response())
}
