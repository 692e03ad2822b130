// Package google builds authenticated Drive and Sheets clients from service
// account credentials.
package google

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/jwt"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const tokenURL = "https://oauth2.googleapis.com/token"

// Scopes requested for the service account.
var Scopes = []string{
	gsheets.SpreadsheetsScope,
	gdrive.DriveScope,
}

// Credentials identify the service account.
type Credentials struct {
	ClientEmail string
	PrivateKey  string
}

// NormalizePrivateKey turns literal "\n" sequences into newlines. Keys pasted
// into a single-line environment variable arrive escaped.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// HTTPClient returns a client that signs a JWT with the service account key
// and attaches the resulting token to every request. Tokens are fetched on
// first use and refreshed as they expire.
func HTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.ClientEmail == "" {
		return nil, errors.New("google: client email is empty")
	}
	key := []byte(NormalizePrivateKey(creds.PrivateKey))
	if block, _ := pem.Decode(key); block == nil {
		return nil, errors.New("google: private key is not PEM encoded")
	}

	conf := &jwt.Config{
		Email:      creds.ClientEmail,
		PrivateKey: key,
		Scopes:     Scopes,
		TokenURL:   tokenURL,
	}
	return conf.Client(ctx), nil
}

// Services are the API clients the server needs.
type Services struct {
	Drive  *gdrive.Service
	Sheets *gsheets.Service
}

// NewServices authenticates once and shares the HTTP client between the
// Drive and Sheets services. ctx must outlive the services; it is used for
// token refreshes.
func NewServices(ctx context.Context, creds Credentials) (*Services, error) {
	client, err := HTTPClient(ctx, creds)
	if err != nil {
		return nil, err
	}

	driveSvc, err := gdrive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("google: drive service: %w", err)
	}
	sheetsSvc, err := gsheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("google: sheets service: %w", err)
	}

	return &Services{Drive: driveSvc, Sheets: sheetsSvc}, nil
}
