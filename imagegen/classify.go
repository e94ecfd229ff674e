package imagegen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"edudiff/core"
	"edudiff/logging"
	"edudiff/sdruntime"
	"edudiff/vision"
)

// ErrorCategory groups failures by what the user can do about them.
type ErrorCategory string

const (
	CategoryNone         ErrorCategory = ""
	CategoryInvalidInput ErrorCategory = "invalid_input"
	CategoryConfig       ErrorCategory = "config"
	CategoryRateLimited  ErrorCategory = "rate_limited"
	CategoryLoading      ErrorCategory = "loading"
	CategoryAuth         ErrorCategory = "auth"
	CategoryBilling      ErrorCategory = "billing"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryCanceled     ErrorCategory = "canceled"
	CategoryUnknown      ErrorCategory = "unknown"
)

// User-facing statuses.
const (
	StatusRateLimited = "⏳ Límite de API alcanzado. Espera unos segundos e intenta de nuevo."
	StatusLoading     = "🔄 El modelo se está cargando. Espera 30 segundos e intenta de nuevo."
	StatusAuth        = "🔑 Error de autenticación con el servicio de generación. Revisa tu token de API."
	StatusBilling     = "💳 Saldo o créditos insuficientes en el servicio de generación."
	StatusTimeout     = "⌛ La generación tardó demasiado y fue cancelada."
	StatusCanceled    = "🚫 La generación se canceló antes de terminar."
	StatusNoImage     = "❌ No se pudo generar la imagen"

	statusConfigPrefix  = "⚙️ Configuración incompleta: "
	statusInvalidPrefix = "⚠️ "
	statusErrorPrefix   = "❌ Error: "

	// maxErrorRunes bounds how much of a raw error reaches the UI.
	maxErrorRunes = 150
)

// keyword fallbacks, checked in this order
var categoryKeywords = []struct {
	category ErrorCategory
	keywords []string
}{
	{CategoryRateLimited, []string{"rate limit", "exceeded", "limit", "queue", "too many requests"}},
	{CategoryLoading, []string{"loading", "cold start", "is currently loading"}},
	{CategoryAuth, []string{"unauthorized", "invalid token", "authentication", "forbidden"}},
	{CategoryBilling, []string{"balance", "credit", "payment", "quota", "billing"}},
}

// Classify maps err to a category. Structured information (HTTP status
// codes, typed and sentinel errors) wins over message keywords.
func Classify(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	if c := classifyStructured(err); c != CategoryNone {
		return c
	}
	return classifyMessage(err.Error())
}

func classifyStructured(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCanceled
	}
	if _, ok := core.IsConfigError(err); ok {
		return CategoryConfig
	}
	if errors.Is(err, sdruntime.ErrLibraryUnavailable) || errors.Is(err, sdruntime.ErrModelNotFound) {
		return CategoryConfig
	}
	if errors.Is(err, sdruntime.ErrInvalidParams) || errors.Is(err, sdruntime.ErrInvalidPrompt) {
		return CategoryInvalidInput
	}
	for _, target := range []error{vision.ErrInvalidImage, vision.ErrUnsupportedFormat, vision.ErrInvalidDimensions, vision.ErrEmptyImage} {
		if errors.Is(err, target) {
			return CategoryInvalidInput
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusServiceUnavailable && !httpErr.IsLoading() {
			return classifyMessage(httpErr.Message)
		}
		return categoryForStatus(httpErr.StatusCode, httpErr.IsLoading())
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return CategoryBilling
		}
		return categoryForStatus(apiErr.HTTPStatusCode, false)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return categoryForStatus(reqErr.HTTPStatusCode, false)
	}
	return CategoryNone
}

func categoryForStatus(code int, loading bool) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return CategoryRateLimited
	case code == http.StatusServiceUnavailable && loading:
		return CategoryLoading
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CategoryAuth
	case code == http.StatusPaymentRequired:
		return CategoryBilling
	default:
		return CategoryNone
	}
}

func classifyMessage(msg string) ErrorCategory {
	lower := strings.ToLower(msg)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryUnknown
}

// StatusFor renders the user-facing status for a failure.
func StatusFor(category ErrorCategory, err error) string {
	switch category {
	case CategoryRateLimited:
		return StatusRateLimited
	case CategoryLoading:
		return StatusLoading
	case CategoryAuth:
		return StatusAuth
	case CategoryBilling:
		return StatusBilling
	case CategoryCanceled:
		return StatusCanceled
	case CategoryTimeout:
		return StatusTimeout
	case CategoryConfig:
		return statusConfigPrefix + errorDetail(err)
	case CategoryInvalidInput:
		return statusInvalidPrefix + errorDetail(err)
	default:
		if err == nil || errors.Is(err, ErrEmptyImage) {
			return StatusNoImage
		}
		return statusErrorPrefix + errorDetail(err)
	}
}

// errorDetail is the redacted, rune-bounded text of err.
func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if cfgErr, ok := core.IsConfigError(err); ok {
		msg = cfgErr.Error()
	}
	return truncateRunes(logging.RedactSensitiveData(msg), maxErrorRunes)
}
