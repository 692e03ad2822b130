package registration

// Column positions of the registration sheet. The order must match the header
// row of the target sheet; nothing checks it, a mismatch misaligns columns.
const (
	ColName = iota
	ColMobileNumber
	ColEmail
	ColCorrespondenceAddress
	ColPermanentAddress
	ColEducationalDetails
	ColTotalJobExperience
	ColPaymentMode
	ColImageURL
	ColBirthdate

	ColumnCount
)

// ImageURLColumn is where the uploaded image URL is stored.
const ImageURLColumn = ColImageURL

// Columns names each position, using the same keys as the JSON records.
var Columns = [ColumnCount]string{
	ColName:                  "name",
	ColMobileNumber:          "mobileNumber",
	ColEmail:                 "email",
	ColCorrespondenceAddress: "correspondenceAddress",
	ColPermanentAddress:      "permanentAddress",
	ColEducationalDetails:    "educationalDetails",
	ColTotalJobExperience:    "totalJobExperience",
	ColPaymentMode:           "paymentMode",
	ColImageURL:              "imageUrl",
	ColBirthdate:             "birthdate",
}

// SheetRow is the write-side shape of one registration.
type SheetRow [ColumnCount]string

// Values converts the row to the cell slice the spreadsheet API expects.
func (r SheetRow) Values() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

// Row lays the submission out in sheet order with imageURL in ColImageURL.
func (s Submission) Row(imageURL string) SheetRow {
	var r SheetRow
	r[ColName] = string(s.Name)
	r[ColMobileNumber] = string(s.MobileNumber)
	r[ColEmail] = string(s.Email)
	r[ColCorrespondenceAddress] = string(s.CorrespondenceAddress)
	r[ColPermanentAddress] = string(s.PermanentAddress)
	r[ColEducationalDetails] = string(s.EducationalDetails)
	r[ColTotalJobExperience] = string(s.TotalJobExperience)
	r[ColPaymentMode] = s.PaymentMode.Flatten()
	r[ColImageURL] = imageURL
	r[ColBirthdate] = string(s.Birthdate)
	return r
}

// SheetRecord is the read-side shape of one spreadsheet row.
type SheetRecord struct {
	Name                  string `json:"name"`
	MobileNumber          string `json:"mobileNumber"`
	Email                 string `json:"email"`
	CorrespondenceAddress string `json:"correspondenceAddress"`
	PermanentAddress      string `json:"permanentAddress"`
	EducationalDetails    string `json:"educationalDetails"`
	TotalJobExperience    string `json:"totalJobExperience"`
	PaymentMode           string `json:"paymentMode"`
	ImageURL              string `json:"imageUrl"`
	Birthdate             string `json:"birthdate"`
}

// RecordFromRow maps a raw row positionally. Missing trailing cells stay
// empty and cells past ColumnCount are ignored.
func RecordFromRow(row []string) SheetRecord {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return SheetRecord{
		Name:                  cell(ColName),
		MobileNumber:          cell(ColMobileNumber),
		Email:                 cell(ColEmail),
		CorrespondenceAddress: cell(ColCorrespondenceAddress),
		PermanentAddress:      cell(ColPermanentAddress),
		EducationalDetails:    cell(ColEducationalDetails),
		TotalJobExperience:    cell(ColTotalJobExperience),
		PaymentMode:           cell(ColPaymentMode),
		ImageURL:              cell(ColImageURL),
		Birthdate:             cell(ColBirthdate),
	}
}
