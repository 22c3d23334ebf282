package api

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// SuccessResponse is the envelope of every successful request
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondWithError(w http.ResponseWriter, code int, message string, errors []string) {
	respondWithJSON(w, code, ErrorResponse{
		Status:  "error",
		Message: message,
		Errors:  errors,
	})
}

func respondWithSuccess(w http.ResponseWriter, code int, message string, data interface{}) {
	respondWithJSON(w, code, SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client went away
}

// validationErrors turns a validator error into one line per field
func validationErrors(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	out := make([]string, len(verrs))
	for i, fe := range verrs {
		out[i] = formatValidationError(fe)
	}
	return out
}

func formatValidationError(err validator.FieldError) string {
	field := err.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch err.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must have at least " + err.Param() + " items"
	case "max":
		return field + " must be at most " + err.Param() + " characters long"
	case "gt":
		return field + " must be greater than " + err.Param()
	case "latitude":
		return field + " must be a latitude between -90 and 90"
	case "longitude":
		return field + " must be a longitude between -180 and 180"
	case "oneof":
		return field + " must be one of: " + err.Param()
	default:
		return field + " failed " + err.Tag() + " validation"
	}
}
