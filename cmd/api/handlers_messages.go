package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/PaulBabatuyi/socialchat/internal/data"
)

// handleConversationWithContact returns the caller's conversation with the
// contact in the path. The caller is the username in the verified token.
func (s *Server) handleConversationWithContact(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaimsFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.writeConversation(w, r, claims.Username, mux.Vars(r)["contact"])
}

// handleConversation serves /messages?contact=&username=.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contact := strings.TrimSpace(q.Get("contact"))
	username := strings.TrimSpace(q.Get("username"))
	if contact == "" || username == "" {
		s.writeError(w, http.StatusBadRequest, "Missing parameters")
		return
	}
	s.writeConversation(w, r, username, contact)
}

func (s *Server) writeConversation(w http.ResponseWriter, r *http.Request, user, contact string) {
	msgs, err := s.msgs.Conversation(r.Context(), user, contact)
	if err != nil {
		s.log.WithError(err).Error("error fetching messages")
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "messages": msgs})
}
