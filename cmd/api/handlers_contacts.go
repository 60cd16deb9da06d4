package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"github.com/PaulBabatuyi/socialchat/internal/validate"
)

type contactRequest struct {
	Username string `json:"username" validate:"min=3"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"mobile"`
	Address  string `json:"address" validate:"min=5"`
}

// readContact decodes, validates and sanitises a contact body. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) readContact(w http.ResponseWriter, r *http.Request) (*data.Contact, bool) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalize.Email(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)

	if err := validate.Struct(req); err != nil {
		s.validationError(w, err)
		return nil, false
	}

	return &data.Contact{
		Username: normalize.Text(req.Username),
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  normalize.Text(req.Address),
	}, true
}

func (s *Server) contactID(w http.ResponseWriter, r *http.Request) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid contact id")
		return bson.ObjectID{}, false
	}
	return id, true
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	c, ok := s.readContact(w, r)
	if !ok {
		return
	}

	created, err := s.contacts.CreateContact(r.Context(), c)
	if err != nil {
		if errors.Is(err, data.ErrDuplicateContact) {
			s.writeError(w, http.StatusConflict, "Contact already exists")
			return
		}
		s.serverError(w, r, "Error adding contact", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "contact": created})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.ListContacts(r.Context())
	if err != nil {
		s.serverError(w, r, "Error fetching contacts", err)
		return
	}
	if contacts == nil {
		contacts = []*data.Contact{}
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "contacts": contacts})
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contactID(w, r)
	if !ok {
		return
	}
	c, ok := s.readContact(w, r)
	if !ok {
		return
	}

	updated, err := s.contacts.UpdateContact(r.Context(), id, c)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrContactNotFound):
			s.writeError(w, http.StatusNotFound, "Contact not found")
		case errors.Is(err, data.ErrDuplicateContact):
			s.writeError(w, http.StatusConflict, "Contact already exists")
		default:
			s.serverError(w, r, "Error updating contact", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "contact": updated})
}

// handleDeleteContact succeeds whether or not the id existed.
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contactID(w, r)
	if !ok {
		return
	}
	if err := s.contacts.DeleteContact(r.Context(), id); err != nil {
		s.serverError(w, r, "Error deleting contact", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Contact deleted"})
}
