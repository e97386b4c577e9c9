package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"snapjournal/internal/service"
)

const (
	imageField = "image"
	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 8 << 20
	// formOverhead leaves room for the non-file fields of a form.
	formOverhead = 1 << 20
)

// parseImageForm reads a multipart form with an "image" file part. On failure
// it has already written the response. The caller closes the returned file.
func (h *Handlers) parseImageForm(w http.ResponseWriter, r *http.Request) (multipart.File, service.ImageUpload, bool) {
	if h.Cfg.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadSize+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, "upload too large", http.StatusRequestEntityTooLarge)
			return nil, service.ImageUpload{}, false
		}
		WriteError(w, "invalid multipart form", http.StatusBadRequest)
		return nil, service.ImageUpload{}, false
	}

	file, header, err := r.FormFile(imageField)
	if err != nil {
		WriteError(w, "missing image file", http.StatusBadRequest)
		return nil, service.ImageUpload{}, false
	}
	return file, service.ImageUpload{File: file, FileName: header.Filename, Size: header.Size}, true
}
