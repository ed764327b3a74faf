package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

const maxJSONBodyBytes = 1 << 20

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// writeServiceError maps a service error onto the HTTP error taxonomy.
// Unrecognized errors are reported to Sentry and returned as a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var rle *models.RateLimitError
	var banned *models.BannedError

	switch {
	case errors.As(err, &rle):
		retry := rle.RemainingSeconds()
		if rle.Kind == models.RateLimitLockout {
			pkghttp.WriteTooManyRequests(w,
				fmt.Sprintf("Too many failed login attempts. Try again in %d minute(s).", rle.RemainingMinutes()),
				retry)
			return
		}
		pkghttp.WriteTooManyRequests(w,
			fmt.Sprintf("You are doing that too often. Try again in %d second(s).", retry),
			retry)
	case errors.As(err, &banned):
		pkghttp.WriteForbiddenWithReason(w, "This account is banned", banned.Reason)
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrIPBlocked):
		pkghttp.WriteForbiddenWithReason(w, "Access from this address is blocked", "ip_blocked")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrAlreadyBlocked):
		pkghttp.WriteConflict(w, "IP address is already blocked")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	case errors.Is(err, models.ErrInternalServer):
		pkghttp.WriteInternalError(w, "Internal server error")
	default:
		sentry.CaptureException(err)
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
