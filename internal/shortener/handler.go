package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	TargetURL   string     `json:"target_url"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateLinkResponse represents the JSON response for a created link.
type CreateLinkResponse struct {
	ID        int64     `json:"id"`
	ShortCode string    `json:"short_code"`
	ShortURL  string    `json:"short_url"`
	TargetURL string    `json:"target_url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LinkDetailsResponse is the JSON form of LinkDetails.
type LinkDetailsResponse struct {
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url"`
	TargetURL      string     `json:"target_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	Status         Status     `json:"status"`
}

// ListLinksResponse is the JSON form of Page.
type ListLinksResponse struct {
	Items      []LinkDetailsResponse `json:"items"`
	Page       int                   `json:"page"`
	Size       int                   `json:"size"`
	TotalItems int64                 `json:"total_items"`
	TotalPages int                   `json:"total_pages"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	now     func() time.Time
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	Now     func() time.Time // clock for expires_at validation; defaults to time.Now
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		now:     now,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := validateCreateRequest(req, h.now()); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"target_url", req.TargetURL,
			"custom_alias", req.CustomAlias,
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	created, err := h.service.CreateLink(ctx, CreateLinkRequest{
		TargetURL:   req.TargetURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", created.ID,
		"short_code", created.ShortCode,
		"custom_alias", strings.TrimSpace(req.CustomAlias) != "",
		"expires_at", created.ExpiresAt,
	)

	httpx.WriteJSON(w, http.StatusCreated, CreateLinkResponse{
		ID:        created.ID,
		ShortCode: created.ShortCode,
		ShortURL:  created.ShortURL,
		TargetURL: created.TargetURL,
		CreatedAt: created.CreatedAt,
		ExpiresAt: created.ExpiresAt,
	})
}

// ResolveLink handles GET /r/{code}: it counts the visit and redirects.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if !isPlausibleShortCode(code) {
		logger.WarnContext(ctx, "malformed short code", "short_code", code)
		httpx.WriteKindError(w, errx.NotFound, ErrLinkNotFound.Error(), nil)
		return
	}

	targetURL, err := h.service.ResolveTarget(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger.With("short_code", code), err)
		return
	}

	logger.InfoContext(ctx, "short code resolved",
		"short_code", code,
		"target_url", targetURL,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	httpx.WriteRedirect(w, r, targetURL)
}

// GetLinkDetails handles GET /links/{code}.
func (h *Handler) GetLinkDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	if !isPlausibleShortCode(code) {
		logger.WarnContext(ctx, "malformed short code", "short_code", code)
		httpx.WriteKindError(w, errx.NotFound, ErrLinkNotFound.Error(), nil)
		return
	}

	details, err := h.service.GetLinkDetails(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger.With("short_code", code), err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toDetailsResponse(details))
}

// ListLinks handles GET /links?page=&size=. Size is capped at MaxPageSize.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	page, err := httpx.QueryInt(r, "page", 0)
	if err != nil {
		logger.WarnContext(ctx, "invalid page parameter", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	size, err := httpx.QueryInt(r, "size", DefaultPageSize)
	if err != nil {
		logger.WarnContext(ctx, "invalid size parameter", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	size = min(size, MaxPageSize)

	result, err := h.service.ListLinks(ctx, page, size)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	resp := ListLinksResponse{
		Items:      make([]LinkDetailsResponse, 0, len(result.Items)),
		Page:       result.PageIndex,
		Size:       result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	}
	for _, d := range result.Items {
		resp.Items = append(resp.Items, toDetailsResponse(d))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError renders a service error. Client errors are logged at warn,
// everything else at error with a generic message.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	var conflict *AliasConflictError

	switch {
	case errors.As(err, &conflict):
		logger.WarnContext(ctx, "short code conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "alias_conflict", conflict.Error(),
			map[string]string{"alias": conflict.Alias})

	case errors.Is(err, ErrInvalidTargetURL):
		logger.WarnContext(ctx, "invalid target url", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_url", errx.Cause(err).Error(), nil)

	case kind == errx.Invalid:
		logger.WarnContext(ctx, "invalid request", logAttrs...)
		httpx.WriteKindError(w, kind, errx.Cause(err).Error(), nil)

	case kind == errx.NotFound:
		logger.WarnContext(ctx, "short link not found", logAttrs...)
		httpx.WriteKindError(w, kind, ErrLinkNotFound.Error(), nil)

	case kind == errx.Expired:
		logger.WarnContext(ctx, "short link expired", logAttrs...)
		httpx.WriteKindError(w, kind, ErrLinkExpired.Error(), nil)

	default:
		logger.ErrorContext(ctx, "unexpected service error", logAttrs...)
		httpx.WriteKindError(w, errx.Internal, "an unexpected error occurred", nil)
	}
}

func toDetailsResponse(d LinkDetails) LinkDetailsResponse {
	return LinkDetailsResponse{
		ShortCode:      d.ShortCode,
		ShortURL:       d.ShortURL,
		TargetURL:      d.TargetURL,
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		ClickCount:     d.ClickCount,
		LastAccessedAt: d.LastAccessedAt,
		Status:         d.Status,
	}
}

// validateCreateRequest checks the request shape before it reaches the service.
func validateCreateRequest(req HTTPCreateLinkRequest, now time.Time) error {
	if strings.TrimSpace(req.TargetURL) == "" {
		return errors.New("target_url is required")
	}
	if len(req.TargetURL) > MaxURLLength {
		return fmt.Errorf("target_url must be at most %d characters", MaxURLLength)
	}
	if alias := strings.TrimSpace(req.CustomAlias); alias != "" {
		if err := ValidateAlias(alias); err != nil {
			return fmt.Errorf("custom_alias: %w", err)
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return errors.New("expires_at must be in the future")
	}
	return nil
}

// isPlausibleShortCode rejects path values that no stored link could match.
// Generated codes may be shorter than MinAliasLength only if configured so,
// which NewService does not allow.
func isPlausibleShortCode(code string) bool {
	return ValidateAlias(code) == nil
}
