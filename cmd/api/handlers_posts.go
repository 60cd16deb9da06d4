package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/PaulBabatuyi/socialchat/internal/data"
	"github.com/PaulBabatuyi/socialchat/internal/media"
	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"github.com/PaulBabatuyi/socialchat/internal/validate"
)

const (
	maxPostFiles   = 10
	maxUploadBytes = 256 << 20
	// beyond this the multipart parser spills to temporary files
	uploadMemory = 32 << 20
)

type postRequest struct {
	Text string `json:"text" validate:"required"`
}

// handleCreatePost stores each attachment under its original name and
// records a post that references them by kind.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := postRequest{Text: strings.TrimSpace(r.FormValue("text"))}
	if err := validate.Struct(req); err != nil {
		s.validationError(w, err)
		return
	}

	headers := r.MultipartForm.File["media"]
	if len(headers) > maxPostFiles {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("At most %d files may be attached", maxPostFiles))
		return
	}

	post := &data.Post{
		Text:       normalize.Text(req.Text),
		ImageFiles: []data.Attachment{},
		VideoFiles: []data.Attachment{},
	}
	// Nothing is uploaded until every attachment has passed.
	kinds := make([]media.Kind, len(headers))
	names := make([]string, len(headers))
	for i, fh := range headers {
		kind, err := media.Classify(fh.Header.Get("Content-Type"))
		if err != nil {
			s.serverError(w, r, "Error creating post", err)
			return
		}
		name, err := attachmentName(fh)
		if err != nil {
			s.serverError(w, r, "Error creating post", err)
			return
		}
		kinds[i], names[i] = kind, name
	}

	for i, fh := range headers {
		att, err := s.storeAttachment(r, fh, names[i], kinds[i])
		if err != nil {
			s.serverError(w, r, "Error creating post", err)
			return
		}
		switch kinds[i] {
		case media.KindImage:
			post.ImageFiles = append(post.ImageFiles, att)
		case media.KindVideo:
			post.VideoFiles = append(post.VideoFiles, att)
		}
	}

	created, err := s.posts.CreatePost(r.Context(), post)
	if err != nil {
		s.serverError(w, r, "Error creating post", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// attachmentName strips any client-side directory from the upload name.
func attachmentName(fh *multipart.FileHeader) (string, error) {
	name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" {
		return "", fmt.Errorf("invalid file name %q", fh.Filename)
	}
	return name, nil
}

func (s *Server) storeAttachment(r *http.Request, fh *multipart.FileHeader, name string, kind media.Kind) (data.Attachment, error) {
	contentType := fh.Header.Get("Content-Type")
	f, err := fh.Open()
	if err != nil {
		return data.Attachment{}, fmt.Errorf("open upload %s: %w", name, err)
	}
	defer f.Close()

	if err := s.files.Put(r.Context(), name, contentType, f, fh.Size); err != nil {
		return data.Attachment{}, fmt.Errorf("store %s: %w", name, err)
	}
	metrics.MediaUploaded(string(kind), fh.Size)

	return data.Attachment{Filename: name, ContentType: contentType}, nil
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.ListPosts(r.Context())
	if err != nil {
		s.serverError(w, r, "Error fetching posts", err)
		return
	}
	if posts == nil {
		posts = []*data.Post{}
	}
	s.writeJSON(w, http.StatusOK, posts)
}

// handleGetFile streams a stored attachment back with its content type.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	obj, err := s.files.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.serverError(w, r, "Error fetching file", err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		// headers are gone, nothing left to tell the client
		s.log.WithError(err).WithField("file", name).Warn("file stream interrupted")
	}
}
