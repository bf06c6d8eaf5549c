package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/http/response"
)

func (s *Server) registerCoverRoutes() {
	maxBytes := s.opts.Upload.MaxSize
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "uploadBookCover",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/cover",
		Summary:     "Upload cover",
		Description: "Stores a cover image for the book (multipart field \"cover\"). Librarians only.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
		// Room for the multipart framing around the image itself.
		MaxBodyBytes: maxBytes + 64<<10,
	}, s.handleUploadCover)

	s.router.Get("/covers/{id}", s.serveCover)
}

// CoverForm is the multipart body of a cover upload.
type CoverForm struct {
	Cover huma.FormFile `form:"cover" required:"true" doc:"PNG, JPEG, GIF, or WebP image"`
}

// UploadCoverInput wraps a cover upload.
type UploadCoverInput struct {
	ID      string `path:"id" doc:"Book ID"`
	RawBody huma.MultipartFormFiles[CoverForm]
}

func (s *Server) handleUploadCover(ctx context.Context, input *UploadCoverInput) (*BookOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}

	file := input.RawBody.Data().Cover
	if !file.IsSet {
		return nil, apperrors.ValidationWithDetails("validation failed", map[string]string{"cover": "is required"})
	}
	defer file.Close()

	if ext := filepath.Ext(file.Filename); ext != "" && !s.opts.Upload.AllowsExtension(ext) {
		return nil, apperrors.Validationf("file type %s is not allowed", strings.ToLower(ext))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.Validation("could not read uploaded file").WithCause(err)
	}

	book, err := s.services.Book.SetCover(ctx, input.ID, data)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

var coverContentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// serveCover streams a stored cover. It is public so <img> tags can load it.
func (s *Server) serveCover(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	f, info, err := s.services.Book.OpenCover(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	defer f.Close()

	etag := fmt.Sprintf("%q", info.Hash)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if ct, ok := coverContentTypes[info.Format]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")

	var modTime time.Time
	if stat, err := f.Stat(); err == nil {
		modTime = stat.ModTime()
	}
	http.ServeContent(w, r, info.Filename, modTime, f)
}
