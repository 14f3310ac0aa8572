package http

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"

	"review-console/internal/domain"
)

const filtersSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "search":   {"type": "string", "maxLength": 200},
    "category": {"type": "string", "enum": ["", "brand", "investor", "wholesale", "affiliate", "partner"]},
    "status":   {"type": "string", "enum": ["", "pending", "approved", "rejected"]},
    "from":     {"type": "string"},
    "to":       {"type": "string"}
  }
}`

const idsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "ids": {
      "type": "array",
      "maxItems": 500,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

var (
	filtersValidator = mustSchema(filtersSchema)
	idsValidator     = mustSchema(idsSchema)
)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// bindValidated checks the request body against schema before decoding it
// into dst. An empty body is treated as {} when allowEmpty is set.
func bindValidated(c echo.Context, schema *gojsonschema.Schema, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", domain.ErrInvalidInput, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if !allowEmpty {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
		}
		body = []byte("{}")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
