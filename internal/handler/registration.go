package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/registrations/internal/registration"
)

// Multipart field names of the registration form.
const (
	formDataField = "formData"
	fileField     = "file"
)

// Registrar is the registration pipeline as seen by the HTTP layer.
type Registrar interface {
	Submit(ctx context.Context, rawForm string, file *registration.File) (*registration.Result, error)
	List(ctx context.Context) ([]registration.SheetRecord, error)
}

// RegistrationHandler serves the registration endpoints.
type RegistrationHandler struct {
	BaseHandler
	registrar      Registrar
	maxUploadBytes int64
}

func NewRegistrationHandler(logger *slog.Logger, registrar Registrar, maxUploadBytes int64) *RegistrationHandler {
	return &RegistrationHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		registrar:      registrar,
		maxUploadBytes: maxUploadBytes,
	}
}

// List writes every sheet row as a JSON array of records.
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.registrar.List(r.Context())
	if err != nil {
		h.logError(r, err)
		h.errorResponse(w, r, http.StatusInternalServerError, "Error fetching data from Google Sheets")
		return
	}

	if err := h.writeJSON(w, http.StatusOK, records, nil); err != nil {
		h.logError(r, err)
	}
}

// Submit accepts a multipart form with a JSON formData field and one file.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			h.errorResponse(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body must not be larger than %d bytes", maxBytesError.Limit))
			return
		}
		h.badRequestResponse(w, r, "request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, err := readUpload(r, fileField)
	if err != nil {
		h.badRequestResponse(w, r, "could not read uploaded file")
		return
	}

	// A client disconnect must not interrupt upload and append.
	ctx := context.WithoutCancel(r.Context())

	res, err := h.registrar.Submit(ctx, r.FormValue(formDataField), file)
	if err != nil {
		if errors.Is(err, registration.ErrMalformedInput) {
			h.badRequestResponse(w, r, malformedMessage(err))
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	env := envelope{"imageUrl": res.ImageURL}
	if res.NotifyErr != nil {
		env["notificationSent"] = false
	}
	if err := h.writeJSON(w, http.StatusOK, env, nil); err != nil {
		h.logError(r, err)
	}
}

// readUpload returns the named file, or nil when the form has none.
func readUpload(r *http.Request, field string) (*registration.File, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &registration.File{
		Name:        sanitizeFilename(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// malformedMessage describes what was wrong with the client's input. Only
// parse errors reach here; they describe the request, not the backends.
func malformedMessage(err error) string {
	var se *registration.StepError
	if errors.As(err, &se) && se.Err != nil {
		return "invalid registration: " + se.Err.Error()
	}
	return "invalid registration"
}

// sanitizeFilename removes path components and dangerous characters
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		name = name[:100]
	}
	if name == "" {
		name = "upload"
	}
	return name
}
