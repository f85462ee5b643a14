package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reviewhub/reviewhub/internal/notify"
	"github.com/reviewhub/reviewhub/internal/service"
	"github.com/reviewhub/reviewhub/internal/store/model"
)

type Handler struct {
	reviews  *service.ReviewService
	registry *notify.Registry
	upgrader websocket.Upgrader
}

func NewHandler(reviews *service.ReviewService, registry *notify.Registry) *Handler {
	return &Handler{
		reviews:  reviews,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type submitRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Priority int    `json:"priority"`
}

type reviewReply struct {
	ID            string        `json:"id"`
	CodeSnippetID string        `json:"code_snippet_id"`
	Status        string        `json:"status"`
	ProgressStage *string       `json:"progress_stage,omitempty"`
	Results       model.JSONMap `json:"results,omitempty"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

func toReviewReply(review *model.Review) reviewReply {
	return reviewReply{
		ID:            review.ID.String(),
		CodeSnippetID: review.CodeSnippetID.String(),
		Status:        review.Status,
		ProgressStage: review.ProgressStage,
		Results:       review.Results,
		ErrorMessage:  review.ErrorMessage,
		StartedAt:     review.StartedAt,
		CompletedAt:   review.CompletedAt,
		CreatedAt:     review.CreatedAt,
	}
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), service.SubmitForm{
		Filename: req.Filename,
		Content:  req.Content,
		Language: req.Language,
		Priority: req.Priority,
	})
	if err != nil {
		var invalid *service.ErrInvalidSubmission
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		zap.S().Named("api_server").Errorw("failed to create review", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toReviewReply(review))
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	review, err := h.reviews.GetReview(r.Context(), id)
	if err != nil {
		var notFound *service.ErrResourceNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, notFound.Error())
			return
		}
		zap.S().Named("api_server").Errorw("failed to get review", "review_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toReviewReply(review))
}

// StreamReview upgrades the request and streams progress frames for one
// review to the caller until the socket closes. The user identity comes
// from the gateway in front of us.
func (h *Handler) StreamReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		zap.S().Named("api_server").Warnw("websocket upgrade failed", "review_id", id, "error", err)
		return
	}

	notify.Serve(r.Context(), h.registry, ws, userID, id.String())
}

// StreamNotifications is the user-level socket: no review attached, so
// the connection only sees user notifications and system broadcasts.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Named("api_server").Warnw("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	notify.Serve(r.Context(), h.registry, ws, userID, "")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
