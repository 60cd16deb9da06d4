package main

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"

	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
)

// httpOptions selects the outer middleware around the router.
type httpOptions struct {
	staticDir  string
	production bool
	sentry     bool
	limiter    *middleware.LimiterStore
}

// routes registers every endpoint on a new router.
func (s *Server) routes(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/check-email", s.handleCheckEmail).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/protected", s.authenticate(s.handleProtected)).Methods(http.MethodGet)

	r.HandleFunc("/contacts", s.handleCreateContact).Methods(http.MethodPost)
	r.HandleFunc("/contacts", s.handleListContacts).Methods(http.MethodGet)
	r.HandleFunc("/contacts/{id}", s.handleUpdateContact).Methods(http.MethodPut)
	r.HandleFunc("/contacts/{id}", s.handleDeleteContact).Methods(http.MethodDelete)

	r.HandleFunc("/messages/{contact}", s.authenticate(s.handleConversationWithContact)).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleConversation).Methods(http.MethodGet)

	r.HandleFunc("/api/posts", s.handleCreatePost).Methods(http.MethodPost)
	r.HandleFunc("/api/posts", s.handleListPosts).Methods(http.MethodGet)
	r.HandleFunc("/files/{filename}", s.handleGetFile).Methods(http.MethodGet)

	r.HandleFunc("/socket", s.handleSocket).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir))).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

// httpHandler wraps the router in the global middleware chain, outermost
// first. These run for unmatched paths too, which Router.Use would not.
func (s *Server) httpHandler(o httpOptions) http.Handler {
	var mws []func(http.Handler) http.Handler
	if o.sentry {
		mws = append(mws, sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	mws = append(mws,
		middleware.RequestID,
		middleware.AccessLog(s.log),
		middleware.CORS,
		middleware.SecurityHeaders,
	)
	if o.production {
		mws = append(mws, middleware.ForceHTTPS)
	}
	if o.limiter != nil {
		mws = append(mws, o.limiter.Handler)
	}
	return middleware.Chain(s.routes(o.staticDir), mws...)
}
