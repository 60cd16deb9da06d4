package main

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/PaulBabatuyi/socialchat/internal/validate"
)

// serverError logs err, reports it to Sentry when a hub is attached to the
// request, and answers 500 with prefix and the underlying message.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error(prefix)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
	s.writeError(w, http.StatusInternalServerError, prefix+": "+err.Error())
}

// validationError answers 400 {success:false, errors:[...]} when err lists
// field violations and 400 {success:false, message} otherwise.
func (s *Server) validationError(w http.ResponseWriter, err error) {
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		s.writeJSON(w, http.StatusBadRequest, envelope{"success": false, "errors": verrs})
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}
