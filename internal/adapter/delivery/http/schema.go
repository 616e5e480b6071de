package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

const statusError = "error"

// createLinkRequest represents a request to wrap a single link.
type createLinkRequest struct {
	URL         string `json:"url" validate:"required,url,max=2048"`
	OwnerID     string `json:"owner_id" validate:"omitempty,max=255"`
	TTLHours    *int   `json:"ttl_hours" validate:"omitempty,min=0,max=87600"`
	CustomAlias string `json:"custom_alias" validate:"omitempty,alphanum,min=3,max=32"`
	StrictAlias bool   `json:"strict_alias"`
}

// createLinksRequest represents a batch creation request.
type createLinksRequest struct {
	URLs     []string `json:"urls" validate:"required,min=1,max=100"`
	OwnerID  string   `json:"owner_id" validate:"omitempty,max=255"`
	TTLHours *int     `json:"ttl_hours" validate:"omitempty,min=0,max=87600"`
}

// updateLinkRequest carries the only fields that may change after creation.
type updateLinkRequest struct {
	TitleAlias  *string    `json:"title_alias" validate:"omitempty,max=255"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

type linkResponse struct {
	ID          string     `json:"id"`
	ShortID     string     `json:"short_id"`
	OriginalURL string     `json:"original_url"`
	Kind        string     `json:"kind"`
	Domain      string     `json:"domain"`
	Category    *string    `json:"category"`
	Alias       string     `json:"alias"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func toLinkResponse(v *entity.LinkView) linkResponse {
	resp := linkResponse{
		ID:          v.ID,
		ShortID:     v.ShortID,
		OriginalURL: v.OriginalURL,
		Kind:        v.Kind.String(),
		Domain:      v.Domain,
		Alias:       v.Alias,
		ClickCount:  v.ClickCount,
		CreatedAt:   v.CreatedAt,
		ExpiresAt:   v.ExpiresAt,
	}

	if v.Category != entity.CategoryNone {
		c := string(v.Category)
		resp.Category = &c
	}

	return resp
}

type batchResponse struct {
	Links     []linkResponse `json:"links"`
	Failed    int            `json:"failed"`
	Retryable bool           `json:"retryable"`
}

type domainCountResponse struct {
	Domain string `json:"domain"`
	Links  int64  `json:"links"`
	Clicks int64  `json:"clicks"`
}

type statsResponse struct {
	TotalClicks    int64                 `json:"total_clicks"`
	NormalLinks    int64                 `json:"normal_links"`
	SensitiveLinks int64                 `json:"sensitive_links"`
	TopDomains     []domainCountResponse `json:"top_domains"`
}

func toStatsResponse(s *entity.Stats) statsResponse {
	resp := statsResponse{
		TotalClicks:    s.TotalClicks,
		NormalLinks:    s.NormalLinks,
		SensitiveLinks: s.SensitiveLinks,
		TopDomains:     make([]domainCountResponse, 0, len(s.TopDomains)),
	}

	for _, d := range s.TopDomains {
		resp.TopDomains = append(resp.TopDomains, domainCountResponse{
			Domain: d.Domain,
			Links:  d.Links,
			Clicks: d.Clicks,
		})
	}

	return resp
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	rejectedLinkResponse = errorResponse{
		Status:  statusError,
		Message: "url must be an absolute http or https url and the alias must be available",
	}

	rejectedUpdateResponse = errorResponse{
		Status:  statusError,
		Message: "alias must be crawler safe and expiry must not be both set and cleared",
	}

	linkNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "link not found",
	}

	rateLimitedResponse = errorResponse{
		Status:  statusError,
		Message: "too many requests",
	}

	retryableErrorResponse = errorResponse{
		Status:  statusError,
		Message: "link could not be created, retry later",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "alphanum":
		return "only letters and digits are allowed"
	case "min", "max":
		return "value out of range"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
