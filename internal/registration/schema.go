package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const submissionSchemaJSON = `{
  "type": "object",
  "required": ["name", "email"],
  "properties": {
    "name":                  {"type": "string", "minLength": 1},
    "email":                 {"type": "string", "minLength": 1},
    "mobileNumber":          {"type": ["string", "number", "null"]},
    "correspondenceAddress": {"type": ["string", "number", "null"]},
    "permanentAddress":      {"type": ["string", "number", "null"]},
    "educationalDetails":    {"type": ["string", "number", "null"]},
    "totalJobExperience":    {"type": ["string", "number", "null"]},
    "birthdate":             {"type": ["string", "number", "null"]},
    "paymentMode": {
      "oneOf": [
        {"type": ["string", "null"]},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

var submissionSchema = mustSchema(submissionSchemaJSON)

var errMissingFile = errors.New("file is required")

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("registration: invalid submission schema: %v", err))
	}
	return schema
}

// ParseSubmission validates raw against the submission schema and decodes it.
// file must be present and non-empty.
func ParseSubmission(raw string, file *File) (Submission, error) {
	var sub Submission

	result, err := submissionSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return sub, fmt.Errorf("form data is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return sub, fmt.Errorf("form data does not match schema: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return sub, fmt.Errorf("decode form data: %w", err)
	}

	if file == nil || len(file.Data) == 0 {
		return sub, errMissingFile
	}
	return sub, nil
}
