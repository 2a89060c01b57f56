// Package validation checks the opaque JSON payloads a recurring series
// carries before they are copied into generated deals.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
)

type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages returns a simple list of error messages
func (r *Result) GetErrorMessages() []string {
	messages := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// ValidateLineItems checks that a line items payload is a JSON array of
// objects each carrying a non-empty name and non-negative numbers. The
// payload is otherwise passed through to generated deals untouched.
func ValidateLineItems(raw json.RawMessage) *Result {
	if len(raw) == 0 {
		return &Result{Valid: true}
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return &Result{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "lineItems",
				Message: "must be a JSON array of objects",
				Code:    "INVALID_TYPE",
			}},
		}
	}

	errors := []ValidationError{}
	for i, item := range items {
		field := fmt.Sprintf("lineItems[%d]", i)

		name, ok := item["name"].(string)
		if !ok || name == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}

		errors = append(errors, validateNonNegative(field+".price", item["price"])...)
		errors = append(errors, validateNonNegative(field+".quantity", item["quantity"])...)
	}

	return &Result{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateNonNegative(field string, value interface{}) []ValidationError {
	if value == nil {
		return nil
	}
	num, ok := value.(float64)
	if !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("expected number, got %T", value),
			Code:    "INVALID_TYPE",
		}}
	}
	if num < 0 {
		return []ValidationError{{
			Field:   field,
			Message: "value must be >= 0",
			Code:    "MINIMUM_VIOLATION",
		}}
	}
	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}
