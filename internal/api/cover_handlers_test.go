package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/service"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 24))
	for y := range 24 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 10), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// coverUpload builds a multipart body and returns it with its Content-Type header line.
func coverUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("cover", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, "Content-Type: " + w.FormDataContentType()
}

func TestUploadCover_ThenServe(t *testing.T) {
	ts := setupTestServer(t)
	librarian, _ := ts.register(t, "ada")
	id := ts.createBook(t, librarian, "Dune", "standard")

	body, contentType := coverUpload(t, "dune.png", testPNG(t))
	resp := ts.api.Put("/api/v1/books/"+id+"/cover", bearer(librarian), contentType, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	book := decode[service.BookView](t, resp).Data
	require.NotNil(t, book.CoverImage)
	assert.Equal(t, "png", book.CoverImage.Format)
	assert.NotEmpty(t, book.CoverImage.BlurHash)
	assert.NotEmpty(t, book.CoverImage.Hash)

	// Covers are public.
	served := ts.api.Get("/covers/" + id)
	require.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "image/png", served.Header().Get("Content-Type"))
	etag := served.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, testPNG(t), served.Body.Bytes())

	notModified := ts.api.Get("/covers/"+id, "If-None-Match: "+etag)
	assert.Equal(t, http.StatusNotModified, notModified.Code)
}

func TestUploadCover_Rejections(t *testing.T) {
	ts := setupTestServer(t)
	librarian, _ := ts.register(t, "ada")
	member, _ := ts.register(t, "grace")
	id := ts.createBook(t, librarian, "Dune", "standard")

	t.Run("member", func(t *testing.T) {
		body, contentType := coverUpload(t, "dune.png", testPNG(t))
		resp := ts.api.Put("/api/v1/books/"+id+"/cover", bearer(member), contentType, body)
		assertError(t, resp, http.StatusForbidden, "FORBIDDEN")
	})

	t.Run("extension not allowed", func(t *testing.T) {
		body, contentType := coverUpload(t, "dune.bmp", testPNG(t))
		resp := ts.api.Put("/api/v1/books/"+id+"/cover", bearer(librarian), contentType, body)
		assertError(t, resp, http.StatusBadRequest, "VALIDATION")
	})

	t.Run("not an image", func(t *testing.T) {
		body, contentType := coverUpload(t, "dune.png", []byte("definitely not a png"))
		resp := ts.api.Put("/api/v1/books/"+id+"/cover", bearer(librarian), contentType, body)
		assertError(t, resp, http.StatusBadRequest, "VALIDATION")
	})

	t.Run("unknown book", func(t *testing.T) {
		body, contentType := coverUpload(t, "dune.png", testPNG(t))
		resp := ts.api.Put("/api/v1/books/book-missing/cover", bearer(librarian), contentType, body)
		assertError(t, resp, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestServeCover_Missing(t *testing.T) {
	ts := setupTestServer(t)
	librarian, _ := ts.register(t, "ada")
	id := ts.createBook(t, librarian, "Dune", "standard")

	assertError(t, ts.api.Get("/covers/"+id), http.StatusNotFound, "NOT_FOUND")
	assertError(t, ts.api.Get("/covers/book-missing"), http.StatusNotFound, "NOT_FOUND")
}
