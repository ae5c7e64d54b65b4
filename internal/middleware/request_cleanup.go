package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest closes the request body once the handler is done.
// At most maxDrain bytes of an unread body are drained so the connection
// can be reused; anything larger is left for the server to discard.
func DrainAndCloseRequest(maxDrain int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrain)
			_ = r.Body.Close()
		})
	}
}
