package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request bodies are checked against JSON Schemas after username and email
// have been trimmed. Properties not named in a schema (such as "role") are
// accepted and ignored.
var (
	loginSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"username": {"type": "string", "minLength": 3, "maxLength": 50},
			"password": {"type": "string", "minLength": 6}
		},
		"required": ["username", "password"]
	}`)

	registerSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"username": {"type": "string", "minLength": 3, "maxLength": 50, "pattern": "^[a-zA-Z0-9_]+$"},
			"email": {"type": "string", "minLength": 1, "format": "email"},
			"password": {"type": "string", "minLength": 6}
		},
		"required": ["username", "email", "password"]
	}`)

	refreshSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"refreshToken": {"type": "string", "minLength": 1}
		},
		"required": ["refreshToken"]
	}`)

	logoutSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"refreshToken": {"type": "string"}
		}
	}`)
)

// fieldOrder fixes the order in which field errors are reported.
var fieldOrder = []string{"username", "email", "password", "refreshToken"}

// fieldMessages holds the client message per field and failed rule. The
// "required" entry also covers empty strings.
var fieldMessages = map[string]map[string]string{
	"username": {
		"required": "Username is required",
		"length":   "Username must be between 3 and 50 characters",
		"pattern":  "Username can only contain letters, numbers, and underscores",
		"type":     "Username must be a string",
	},
	"email": {
		"required": "Email is required",
		"format":   "Must be a valid email address",
		"type":     "Email must be a string",
	},
	"password": {
		"required": "Password is required",
		"length":   "Password must be at least 6 characters",
		"type":     "Password must be a string",
	},
	"refreshToken": {
		"required": "Refresh token is required",
		"type":     "Refresh token must be a string",
	},
}

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// decodeBody reads r's JSON object body, trims the fields listed in trim,
// validates it against schema and returns the resulting document.
func decodeBody(r *http.Request, schema *gojsonschema.Schema, trim ...string) (map[string]any, error) {
	doc := map[string]any{}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "Request body must be a JSON object"}}}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	for _, key := range trim {
		if s, ok := doc[key].(string); ok {
			doc[key] = strings.TrimSpace(s)
		}
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}
	if res.Valid() {
		return doc, nil
	}

	return nil, &ValidationError{Fields: fieldErrors(doc, res.Errors())}
}

func fieldErrors(doc map[string]any, errs []gojsonschema.ResultError) []FieldError {
	seen := map[string]map[string]bool{}
	var out []FieldError

	add := func(field, rule string) {
		if v, ok := doc[field].(string); ok && v == "" {
			rule = "required"
		}
		if seen[field] == nil {
			seen[field] = map[string]bool{}
		}
		if seen[field][rule] {
			return
		}
		seen[field][rule] = true

		msg, ok := fieldMessages[field][rule]
		if !ok {
			msg = fmt.Sprintf("Invalid value for %s", field)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}

	for _, e := range errs {
		field := e.Field()
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				field = p
			}
		}
		add(field, ruleOf(e.Type()))
	}

	slices.SortStableFunc(out, func(a, b FieldError) int {
		return slices.Index(fieldOrder, a.Field) - slices.Index(fieldOrder, b.Field)
	})
	return out
}

func ruleOf(errType string) string {
	switch errType {
	case "required":
		return "required"
	case "string_gte", "string_lte":
		return "length"
	case "pattern":
		return "pattern"
	case "format":
		return "format"
	case "invalid_type":
		return "type"
	default:
		return errType
	}
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
