// Package validation decodes loosely typed JSON documents into tagged structs
// and reports every violated constraint in one pass.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformed is returned by ParseJSON for bodies that are not a single JSON value.
var ErrMalformed = errors.New("malformed JSON")

// maxDecodePasses bounds the prune-and-retry loop in Decode.
const maxDecodePasses = 256

// Violation describes one failed constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
	Value      string `json:"value,omitempty"`
}

// Error carries every violation found in a document.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("validation failed: %s %s", v.Field, v.Message)
	}
	return fmt.Sprintf("validation failed: %d violations", len(e.Violations))
}

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator that reports fields by their json names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for reserved tags.
	_ = v.RegisterValidation("int", isIntegral)
	return &Validator{validate: v}
}

// isIntegral accepts numbers without a fractional part, so 3.0 passes and 3.5 does not.
func isIntegral(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return !math.IsInf(x, 0) && math.Trunc(x) == x
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// ParseJSON decodes body into a generic value, keeping numbers exact.
func ParseJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformed)
	}
	return doc, nil
}

// Decode fills dst (a pointer to struct) from doc and validates it.
// Fields holding a value of the wrong JSON type are reported and dropped,
// then decoding is retried so the remaining fields are still checked.
// Unknown keys are ignored and null is treated as absent.
func (v *Validator) Decode(doc any, dst any) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return &Error{Violations: []Violation{{
			Constraint: "type",
			Message:    "expected object, received " + jsonKindOfValue(doc),
			Value:      summarize(doc),
		}}}
	}
	obj = deepCopy(obj).(map[string]any)

	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.New("validation: dst must be a non-nil pointer")
	}

	var (
		violations []Violation
		mismatched []string
	)

	for range maxDecodePasses {
		target.Elem().SetZero()

		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("failed to re-encode document: %w", err)
		}

		err = json.Unmarshal(data, dst)
		if err == nil {
			break
		}

		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return fmt.Errorf("failed to decode document: %w", err)
		}

		got, _ := lookup(obj, typeErr.Field)
		violations = append(violations, Violation{
			Field:      typeErr.Field,
			Constraint: "type",
			Message:    mismatchMessage(typeErr, got),
			Value:      summarize(got),
		})
		mismatched = append(mismatched, typeErr.Field)

		if !removePath(obj, typeErr.Field) {
			break
		}
	}

	if err := v.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate document: %w", err)
		}

		for _, fe := range fieldErrs {
			field := fieldPath(fe.Namespace())
			if covered(field, mismatched) {
				continue
			}
			violations = append(violations, Violation{
				Field:      field,
				Constraint: fe.Tag(),
				Message:    message(fe),
				Value:      summarize(fe.Value()),
			})
		}
	}

	if len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

func covered(field string, prefixes []string) bool {
	for _, p := range prefixes {
		if field == p || strings.HasPrefix(field, p+".") || strings.HasPrefix(field, p+"[") {
			return true
		}
	}
	return false
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be an RFC 3339 timestamp"
	case "int":
		return "must be an integer"
	case "min", "gte":
		return bound("at least", "greater than or equal to", fe)
	case "max", "lte":
		return bound("at most", "less than or equal to", fe)
	default:
		return fmt.Sprintf("failed on the %q constraint", fe.Tag())
	}
}

func bound(sizeWord, numberWord string, fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return fmt.Sprintf("must be %s %s characters", sizeWord, fe.Param())
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("must contain %s %s items", sizeWord, fe.Param())
	default:
		return fmt.Sprintf("must be %s %s", numberWord, fe.Param())
	}
}
