package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
	"github.com/vadimbarashkov/link-gateway/internal/usecase"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type gateway interface {
	CreateLink(ctx context.Context, p usecase.CreateParams) (*entity.LinkView, error)
	CreateMany(ctx context.Context, urls []string, p usecase.BatchParams) ([]*entity.LinkView, error)
	ResolveLink(ctx context.Context, shortID string, meta entity.RequesterMeta) usecase.Outcome
	RecordVerifiedContinue(ctx context.Context, shortID string, meta entity.RequesterMeta) usecase.Outcome
	UpdateLink(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.LinkView, error)
	GetStats(ctx context.Context, ownerID string) (*entity.Stats, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type botSentinel interface {
	Classify(userAgent, path string) entity.BotVerdict
	SafeHeaders(isBot bool) http.Header
}

type rateLimiter interface {
	Admit(ctx context.Context, identity, routeClass string, maxRequests int, window time.Duration) bool
}

type linkHandler struct {
	gateway  gateway
	validate *validator.Validate
}

func newLinkHandler(gw gateway, validate *validator.Validate) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		gateway:  gw,
		validate: validate,
	}
}

// decode reads and validates a JSON body into v. It writes the error
// response and returns false when the body is unusable.
func (h *linkHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

func (h *linkHandler) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest

	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.gateway.CreateLink(r.Context(), usecase.CreateParams{
		URL:         req.URL,
		OwnerID:     req.OwnerID,
		TTLHours:    req.TTLHours,
		CustomAlias: req.CustomAlias,
		StrictAlias: req.StrictAlias,
	})
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		if errors.Is(err, entity.ErrValidation) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, rejectedLinkResponse)
			return
		}

		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, retryableErrorResponse)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(view))
}

func (h *linkHandler) createLinks(w http.ResponseWriter, r *http.Request) {
	var req createLinksRequest

	if !h.decode(w, r, &req) {
		return
	}

	views, err := h.gateway.CreateMany(r.Context(), req.URLs, usecase.BatchParams{
		OwnerID:  req.OwnerID,
		TTLHours: req.TTLHours,
	})
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		if len(views) == 0 {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, retryableErrorResponse)
			return
		}
	}

	resp := batchResponse{
		Links:     make([]linkResponse, 0, len(views)),
		Failed:    len(req.URLs) - len(views),
		Retryable: err != nil,
	}
	for _, v := range views {
		resp.Links = append(resp.Links, toLinkResponse(v))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *linkHandler) updateLink(w http.ResponseWriter, r *http.Request) {
	var req updateLinkRequest

	if !h.decode(w, r, &req) {
		return
	}

	shortID := chi.URLParam(r, "shortID")

	view, err := h.gateway.UpdateLink(r.Context(), shortID, entity.LinkUpdate{
		TitleAlias:  req.TitleAlias,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		if errors.Is(err, entity.ErrValidation) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, rejectedUpdateResponse)
			return
		}

		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(view))
}

func (h *linkHandler) getStats(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")

	stats, err := h.gateway.GetStats(r.Context(), ownerID)
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(stats))
}

func (h *linkHandler) purgeExpired(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.gateway.PurgeExpired(r.Context())
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, purgeResponse{Deleted: deleted})
}
