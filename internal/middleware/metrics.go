package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/PaulBabatuyi/socialchat/internal/metrics"
)

// Metrics records request counts and latency labelled by route template,
// so /contacts/{id} is one series rather than one per id. It must be
// installed with Router.Use so the matched route is known.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}
