package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// Recover turns a handler panic into a JSON 500 and reports it to Sentry.
// http.ErrAbortHandler is re-panicked so the server aborts the response.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("path", r.URL.Path)
					scope.SetExtra("request_id", middleware.GetReqID(r.Context()))
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureException(fmt.Errorf("panic: %v", rec))
				})

				logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Any("panic", rec),
				)

				pkghttp.WriteInternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
