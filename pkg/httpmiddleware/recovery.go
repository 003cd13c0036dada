package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/ron/pkg/logger"
)

const panicResponse = `{"error":"internal server error"}`

// Recovery returns a middleware that turns a handler panic into a JSON 500
// and logs it with the request's correlation ID. A nil logger only suppresses
// the log entry. http.ErrAbortHandler is re-raised so net/http can abort the
// connection.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
					panic(rec)
				}
				if log != nil {
					logPanic(r, rec, log)
				}

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicResponse))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(r *http.Request, rec interface{}, log logger.Logger) {
	fields := []logger.LogField{
		logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
		logger.StringField("http_method", r.Method),
		logger.StringField("http_path", r.URL.Path),
		logger.StringField("client_ip", r.RemoteAddr),
		logger.StringField("stack_trace", string(debug.Stack())),
	}
	logger.GetLoggerFromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)
}
