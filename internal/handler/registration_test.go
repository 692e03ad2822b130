package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrations/internal/registration"
)

type fakeBlobs struct {
	mu       sync.Mutex
	uploaded []registration.File
	ctxErrs  []error
	err      error
}

func (f *fakeBlobs) Upload(ctx context.Context, file registration.File) (registration.StoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return registration.StoredImage{}, f.err
	}
	f.uploaded = append(f.uploaded, file)
	return registration.StoredImage{ID: "f1", URL: "https://drive.google.com/uc?id=f1"}, nil
}

type fakeSheet struct {
	mu      sync.Mutex
	rows    [][]string
	err     error
	readErr error
}

func (f *fakeSheet) Append(_ context.Context, row registration.SheetRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row[:])
	return nil
}

func (f *fakeSheet) Rows(context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, f.readErr
}

type failingNotifier struct{}

func (failingNotifier) SendConfirmation(context.Context, registration.Confirmation) error {
	return errors.New("smtp: 535 authentication failed")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(blobs *fakeBlobs, sheet *fakeSheet, notifier registration.Notifier) *RegistrationHandler {
	p := registration.NewPipeline(blobs, sheet, notifier)
	return NewRegistrationHandler(testLogger(), p, 1<<20)
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

// buildMultipartForm creates a multipart form body from fields and an optional file
func buildMultipartForm(t *testing.T, fields map[string]string, file *upload) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.name+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postSubmit(t *testing.T, h *RegistrationHandler, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := buildMultipartForm(t, fields, file)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.Submit(rr, req)
	return rr
}

const formData = `{"name":"Asha Rao","mobileNumber":"9876543210","email":"asha@example.com","paymentMode":["UPI","Cash"],"birthdate":"1995-04-12"}`

func jpegUpload() *upload {
	return &upload{name: "photo.jpg", contentType: "image/jpeg", data: []byte("\xff\xd8\xff\xe0 jpeg")}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	return m
}

func TestSubmit_Success(t *testing.T) {
	blobs, sheet := &fakeBlobs{}, &fakeSheet{}
	rr := postSubmit(t, newTestHandler(blobs, sheet, nil), map[string]string{"formData": formData}, jpegUpload())

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"imageUrl": "https://drive.google.com/uc?id=f1"}, decodeBody(t, rr))

	require.Len(t, blobs.uploaded, 1)
	assert.Equal(t, "photo.jpg", blobs.uploaded[0].Name)
	assert.Equal(t, "image/jpeg", blobs.uploaded[0].ContentType)

	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "UPI, Cash", sheet.rows[0][registration.ColPaymentMode])
	assert.Equal(t, "https://drive.google.com/uc?id=f1", sheet.rows[0][registration.ImageURLColumn])
}

func TestSubmit_NotificationFailureStillSucceeds(t *testing.T) {
	sheet := &fakeSheet{}
	rr := postSubmit(t, newTestHandler(&fakeBlobs{}, sheet, failingNotifier{}), map[string]string{"formData": formData}, jpegUpload())

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "https://drive.google.com/uc?id=f1", body["imageUrl"])
	assert.Equal(t, false, body["notificationSent"])
	assert.NotContains(t, rr.Body.String(), "535")
	assert.Len(t, sheet.rows, 1)
}

func TestSubmit_MalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   *upload
		want   string
	}{
		{"bad json", map[string]string{"formData": `{"name":`}, jpegUpload(), "not valid JSON"},
		{"missing formData", map[string]string{}, jpegUpload(), "invalid registration"},
		{"missing required field", map[string]string{"formData": `{"name":"Asha"}`}, jpegUpload(), "email"},
		{"missing file", map[string]string{"formData": formData}, nil, "file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs, sheet := &fakeBlobs{}, &fakeSheet{}
			rr := postSubmit(t, newTestHandler(blobs, sheet, nil), tt.fields, tt.file)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			errMsg, _ := decodeBody(t, rr)["error"].(string)
			assert.Contains(t, errMsg, tt.want)
			assert.Empty(t, blobs.uploaded)
			assert.Empty(t, sheet.rows)
		})
	}
}

func TestSubmit_NotMultipart(t *testing.T) {
	h := newTestHandler(&fakeBlobs{}, &fakeSheet{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Submit(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmit_TooLarge(t *testing.T) {
	blobs := &fakeBlobs{}
	h := NewRegistrationHandler(testLogger(), registration.NewPipeline(blobs, &fakeSheet{}, nil), 1024)

	big := &upload{name: "big.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte("a"), 4096)}
	rr := postSubmit(t, h, map[string]string{"formData": formData}, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, blobs.uploaded)
}

func TestSubmit_UpstreamFailuresAreOpaque(t *testing.T) {
	tests := []struct {
		name  string
		blobs *fakeBlobs
		sheet *fakeSheet
	}{
		{"upload", &fakeBlobs{err: errors.New("drive: 403 secret-folder-id")}, &fakeSheet{}},
		{"append", &fakeBlobs{}, &fakeSheet{err: errors.New("sheets: 404 secret-sheet-id")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postSubmit(t, newTestHandler(tt.blobs, tt.sheet, nil), map[string]string{"formData": formData}, jpegUpload())

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "the server encountered a problem and could not process your request", decodeBody(t, rr)["error"])
			assert.NotContains(t, rr.Body.String(), "secret")
		})
	}
}

func TestSubmit_ClientDisconnectDoesNotCancelPipeline(t *testing.T) {
	blobs := &fakeBlobs{}
	h := newTestHandler(blobs, &fakeSheet{}, nil)

	body, contentType := buildMultipartForm(t, map[string]string{"formData": formData}, jpegUpload())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.Submit(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, blobs.ctxErrs, 1)
	assert.NoError(t, blobs.ctxErrs[0])
}

func TestSubmit_DetectsContentType(t *testing.T) {
	blobs := &fakeBlobs{}
	png := &upload{name: "a.png", data: []byte("\x89PNG\r\n\x1a\n rest")}
	rr := postSubmit(t, newTestHandler(blobs, &fakeSheet{}, nil), map[string]string{"formData": formData}, png)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, blobs.uploaded, 1)
	assert.Equal(t, "image/png", blobs.uploaded[0].ContentType)
}

func TestList(t *testing.T) {
	sheet := &fakeSheet{rows: [][]string{
		{"Asha", "98", "asha@example.com", "", "", "", "", "UPI", "https://drive.google.com/uc?id=f1", "1995-04-12"},
		{"Ravi"},
	}}
	h := newTestHandler(&fakeBlobs{}, sheet, nil)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var records []registration.SheetRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "asha@example.com", records[0].Email)
	assert.Equal(t, "https://drive.google.com/uc?id=f1", records[0].ImageURL)
	assert.Equal(t, "Ravi", records[1].Name)
	assert.Empty(t, records[1].Email)
}

func TestList_Empty(t *testing.T) {
	h := newTestHandler(&fakeBlobs{}, &fakeSheet{}, nil)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestList_ReadFailure(t *testing.T) {
	h := newTestHandler(&fakeBlobs{}, &fakeSheet{readErr: errors.New("sheets: 403 secret")}, nil)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Error fetching data from Google Sheets"}`, rr.Body.String())
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(time.Now().Add(-time.Minute)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{`C:\Users\me\pic.png`, "C:_Users_me_pic.png"},
		{"a\x00b.jpg", "ab.jpg"},
		{"", "upload"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}
