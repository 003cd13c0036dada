package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lewisedginton/ron/pkg/logger"
)

// CorrelationID middleware ensures every request carries a correlation ID.
// A client supplied X-Correlation-ID is honoured only when it is a bare or
// prefixed UUID; anything else is replaced. The ID is echoed on the response and stored in
// the request context for logger.GetLoggerFromContext.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(logger.CorrelationIDHeader)
			if !logger.ValidCorrelationID(id) {
				id = uuid.New().String()
				r.Header.Set(logger.CorrelationIDHeader, id)
			}
			w.Header().Set(logger.CorrelationIDHeader, id)

			r = r.WithContext(logger.WithCorrelationIDContext(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}
