package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxJSONBody = 1 << 20

// envelope is the loose JSON object most handlers answer with.
type envelope map[string]any

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}

// writeError answers {success:false, message}.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, envelope{"success": false, "message": msg})
}

// decodeJSON reads a single JSON object from the body into dst. Form
// encoded bodies are accepted too because the bundled front end posts both.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("malformed form body: %w", err)
		}
		flat := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			flat[k] = r.PostForm.Get(k)
		}
		b, err := json.Marshal(flat)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must not be empty")
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}
