// Package schema validates command payloads and responses against the JSON
// schemas a flight declares for its command types.
package schema

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/avionyx/flightd/pkg/models"
)

// Validate checks value against the given JSON schema document. A nil
// schema accepts anything. Schema violations map to
// models.ErrInvalidPayload; a malformed schema document maps to
// models.ErrInvalidInput.
//
// Schema documents may come out of flight records loaded from storage,
// where nested values decode as BSON document types. Round-tripping
// through relaxed extended JSON normalizes them before compilation.
func Validate(schemaDoc map[string]any, value any) error {
	if schemaDoc == nil {
		return nil
	}

	raw, err := bson.MarshalExtJSON(bson.M(schemaDoc), false, false)
	if err != nil {
		return fmt.Errorf("%w: encoding schema: %v", models.ErrInvalidInput, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: parsing schema: %v", models.ErrInvalidInput, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return fmt.Errorf("%w: loading schema: %v", models.ErrInvalidInput, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("%w: compiling schema: %v", models.ErrInvalidInput, err)
	}

	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	return nil
}
