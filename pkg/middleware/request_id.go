package middleware

import (
	"net/http"

	"github.com/vcf-annotator/annotator/pkg/requestid"
)

// RequestID puts the id sent by the client, or a new one, into the request
// context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.FromRequest(r)
		if id == "" {
			id = requestid.Generate()
		}
		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
