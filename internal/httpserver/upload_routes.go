package httpserver

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chatbackend/internal/config"
)

// UploadRoutes returns the asset-host sub-router mounted at /api/uploads:
// a file goes in, a retrievable URL and a coarse type come out.
func UploadRoutes(cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(50 << 20); err != nil { // 50MB limit
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "failed to parse multipart form"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No file uploaded"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtension(ext) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "File type not supported"})
			return
		}

		filename := strconv.FormatInt(time.Now().UnixNano(), 10) + ext
		destPath := filepath.Join(cfg.UploadDir, filename)

		out, err := os.Create(destPath)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "could not create file"})
			return
		}
		defer out.Close()

		if _, err := io.Copy(out, file); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "could not save file"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "File uploaded successfully",
			"url":          "/api/uploads/" + filename,
			"fileType":     coarseType(header.Header.Get("Content-Type")),
			"originalName": header.Filename,
		})
	})

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}
		// Prevent path traversal by rejecting anything with separators.
		if filepath.Base(filename) != filename {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.UploadDir, filename))
	})

	return r
}

var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".pdf": {}, ".doc": {}, ".docx": {},
	".mp4": {}, ".webm": {}, ".mp3": {}, ".wav": {},
}

func allowedExtension(ext string) bool {
	_, ok := allowedExtensions[ext]
	return ok
}

// coarseType buckets a mime type into the categories the client understands.
func coarseType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return "file"
	}
}
