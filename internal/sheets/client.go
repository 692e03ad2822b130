// Package sheets appends registration rows to, and reads them back from, a
// Google Sheets tab.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gsheets "google.golang.org/api/sheets/v4"

	"github.com/registrations/internal/registration"
)

// Client is bound to one tab of one spreadsheet.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetName     string
}

func NewClient(svc *gsheets.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// Append adds row after the last non-empty row of the tab. Values are stored
// as given (RAW), without formula or date parsing.
func (c *Client) Append(ctx context.Context, row registration.SheetRow) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{row.Values()}}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, quoteSheet(c.sheetName)+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append to %s: %w", c.sheetName, err)
	}
	return nil
}

// Rows returns every row of the tab, in sheet order, with cells rendered as
// strings. An empty tab yields no rows and no error.
func (c *Client) Rows(ctx context.Context) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, quoteSheet(c.sheetName)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", c.sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cellString renders a decoded cell. Numbers come back as float64 when the
// sheet holds unformatted values; they are printed without exponent.
func cellString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// quoteSheet quotes a tab name for A1 notation when it contains anything
// other than letters, digits and underscores.
func quoteSheet(name string) string {
	plain := strings.IndexFunc(name, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) < 0
	if plain && name != "" {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
