// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every request with Logrus once the handler returns. For the
// websocket route that is when the client disconnects, so the duration is the
// session length. The ResponseWriter is passed through untouched so upgrades work.
func LogMiddleware(logger logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			fields := logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields["request_id"] = id
			}
			logger.WithFields(fields).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a message when a lobby client finishes the upgrade.
func LogWebSocketConnect(logger logrus.FieldLogger, remoteAddr string, session string) {
	logger.WithFields(logrus.Fields{
		"remote":  remoteAddr,
		"session": session,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a message when a lobby client goes away.
func LogWebSocketDisconnect(logger logrus.FieldLogger, remoteAddr string, session string, err error) {
	fields := logrus.Fields{
		"remote":  remoteAddr,
		"session": session,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
