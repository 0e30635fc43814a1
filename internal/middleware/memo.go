package middleware

import (
	"net/http"

	"trialportal/internal/cms"
)

// RequestMemo gives every request its own CMS memo, so identical CMS reads
// made while rendering one page hit the network once.
func RequestMemo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := cms.WithMemo(r.Context(), cms.NewMemo())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
