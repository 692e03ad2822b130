// Package registration implements the registration intake pipeline: an
// uploaded image goes to the blob store, the form plus the image URL becomes
// one spreadsheet row, and the registrant optionally gets a confirmation email.
package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// File is the single binary attachment of a submission.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// StoredImage is the result of a blob upload.
type StoredImage struct {
	ID  string
	URL string
}

// Confirmation is what a Notifier needs to email a registrant.
type Confirmation struct {
	To       string
	Name     string
	ImageURL string
}

// BlobStore uploads a file and returns a URL that dereferences to it.
type BlobStore interface {
	Upload(ctx context.Context, file File) (StoredImage, error)
}

// Sheet appends single rows to, and reads every row from, the spreadsheet of record.
type Sheet interface {
	Append(ctx context.Context, row SheetRow) error
	Rows(ctx context.Context) ([][]string, error)
}

// Notifier sends the confirmation email.
type Notifier interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// Text is a scalar form value. Browsers and form libraries send some fields
// (mobile number, experience) as JSON numbers, so numbers are accepted and
// kept in their literal form.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = Text(n.String())
	return nil
}

// PaymentMode holds either a single mode or the set of modes the registrant ticked.
type PaymentMode []string

func (p *PaymentMode) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var modes []string
		if err := json.Unmarshal(b, &modes); err != nil {
			return err
		}
		*p = modes
		return nil
	}
	var mode Text
	if err := mode.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = PaymentMode{string(mode)}
	return nil
}

// Flatten joins the modes with ", " for storage in a single cell.
func (p PaymentMode) Flatten() string {
	return strings.Join(p, ", ")
}

// Submission is the decoded formData payload of one registration request.
type Submission struct {
	Name                  Text        `json:"name"`
	MobileNumber          Text        `json:"mobileNumber"`
	Email                 Text        `json:"email"`
	CorrespondenceAddress Text        `json:"correspondenceAddress"`
	PermanentAddress      Text        `json:"permanentAddress"`
	EducationalDetails    Text        `json:"educationalDetails"`
	TotalJobExperience    Text        `json:"totalJobExperience"`
	PaymentMode           PaymentMode `json:"paymentMode"`
	Birthdate             Text        `json:"birthdate"`
}
