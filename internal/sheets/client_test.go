package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/registrations/internal/registration"
)

func newTestClient(t *testing.T, h http.HandlerFunc, sheetName string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewClient(svc, "sheet-id", sheetName)
}

func TestAppend(t *testing.T) {
	var (
		path  string
		query string
		body  gsheets.ValueRange
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.Query().Get("valueInputOption")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"spreadsheetId":"sheet-id"}`)
	}, "Sheet1")

	sub := registration.Submission{Name: "Asha", Email: "asha@example.com", PaymentMode: registration.PaymentMode{"UPI", "Cash"}}
	require.NoError(t, client.Append(context.Background(), sub.Row("https://drive.google.com/uc?id=f1")))

	assert.Equal(t, "/v4/spreadsheets/sheet-id/values/Sheet1!A1:append", path)
	assert.Equal(t, "RAW", query)
	require.Len(t, body.Values, 1)
	require.Len(t, body.Values[0], registration.ColumnCount)
	assert.Equal(t, "Asha", body.Values[0][registration.ColName])
	assert.Equal(t, "UPI, Cash", body.Values[0][registration.ColPaymentMode])
	assert.Equal(t, "https://drive.google.com/uc?id=f1", body.Values[0][registration.ColImageURL])
}

func TestAppendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
	}, "Sheet1")

	err := client.Append(context.Background(), registration.SheetRow{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Sheet1")
}

func TestRows(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"range":"Sheet1!A1:J3","majorDimension":"ROWS","values":[
			["name","mobileNumber"],
			["Asha", 9876543210],
			["Ravi"]
		]}`)
	}, "Sheet1")

	rows, err := client.Rows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/v4/spreadsheets/sheet-id/values/Sheet1", path)
	assert.Equal(t, [][]string{
		{"name", "mobileNumber"},
		{"Asha", "9876543210"},
		{"Ravi"},
	}, rows)
}

func TestRowsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"range":"Sheet1!A1:Z1000","majorDimension":"ROWS"}`)
	}, "Sheet1")

	rows, err := client.Rows(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRowsQuotedSheetName(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{}`)
	}, "Form Responses")

	_, err := client.Rows(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "/values/'Form Responses'"), path)
}

func TestQuoteSheet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sheet1", "Sheet1"},
		{"my_tab", "my_tab"},
		{"Form Responses 1", "'Form Responses 1'"},
		{"Bob's", "'Bob''s'"},
		{"", "''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteSheet(tt.in), tt.in)
	}
}
