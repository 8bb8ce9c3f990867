package schema

import (
	"fmt"
	"strings"

	"github.com/bnema/osabridge/internal/domain"
	"github.com/bnema/osabridge/internal/ports"
	"github.com/xeipuuv/gojsonschema"
)

type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command failed schema validation: %s", strings.Join(e.Details, "; "))
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrMalformedCommand
}

// Validator checks raw commands against the envelope schema before they are
// parsed.
type Validator struct {
	schema *gojsonschema.Schema
}

var _ ports.CommandValidator = (*Validator)(nil)

func NewValidator() (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(commandSchema))
	if err != nil {
		return nil, fmt.Errorf("compile command schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

func (v *Validator) Validate(raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedCommand, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return &ValidationError{Details: details}
}
