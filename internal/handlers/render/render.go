// Package render writes the JSON responses and decodes request bodies.
// Error payloads share one envelope so API consumers can switch on the
// error kind without parsing the message.
package render

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

type Struct any

// ErrorResponse is the envelope every error payload uses. Fields is only
// populated for validation failures.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var validate = validator.New()

func init() {
	configureValidator(validate)
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

// ServiceError renders a plain service failure with the given status code.
func ServiceError(w http.ResponseWriter, message string, code int) {
	jsonWithStatus(w, ErrorResponse{Error: ServiceErrorType, Message: message}, code)
}

// DecodeError renders a body parsing failure as 400.
func DecodeError(w http.ResponseWriter, err error) {
	message := "Failed to parse JSON: " + err.Error()
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	}

	jsonWithStatus(w, ErrorResponse{Error: DecodingErrorType, Message: message}, http.StatusBadRequest)
}

// ValidationErrors renders per-field validation failures as 400.
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}
	for _, fieldError := range errs {
		response.Fields[fieldError.Field()] = fieldMessage(fieldError)
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

func fieldMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "len":
		return fmt.Sprintf("Value must be exactly %s characters", fieldError.Param())
	case "numeric":
		return "Value must contain digits only"
	default:
		return "Invalid value"
	}
}

// BindAndValidate decodes the JSON body into T and validates it by struct
// tags. On failure it has already written the error response; the caller
// only needs to return.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		DecodeError(w, err)
		return value, err
	}

	if err := validate.Struct(value); err != nil {
		// The cast is safe as long as T is a struct, which every request
		// type here is.
		ValidationErrors(w, err.(validator.ValidationErrors))
		return value, err
	}

	return value, nil
}

// jsonWithStatus marshals before touching the ResponseWriter so an
// encoding failure cannot leak a half-written 200 body.
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
