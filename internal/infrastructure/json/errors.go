package json

import (
	"net/http"
	"strconv"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FieldErrorsResponse carries per-field validation messages.
type FieldErrorsResponse struct {
	Errors map[string][]string `json:"errors"`
}

func WriteError(w http.ResponseWriter, status int, err error, msg string) {
	Write(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	})
}

func WriteValidationError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, err, err.Error())
}

func WriteBadRequestError(w http.ResponseWriter, msg string) {
	Write(w, http.StatusBadRequest, ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: msg,
	})
}

func WriteUnauthorizedError(w http.ResponseWriter) {
	Write(w, http.StatusUnauthorized, ErrorResponse{
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: "You need to sign in or sign up before continuing.",
	})
}

func WriteForbiddenError(w http.ResponseWriter) {
	Write(w, http.StatusForbidden, ErrorResponse{
		Error:   http.StatusText(http.StatusForbidden),
		Message: "You are not authorized to do that!",
	})
}

func WriteNotFoundError(w http.ResponseWriter, msg string) {
	Write(w, http.StatusNotFound, ErrorResponse{
		Error:   http.StatusText(http.StatusNotFound),
		Message: msg,
	})
}

// WriteFieldErrors answers 422 with {"errors": {...}}.
func WriteFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	Write(w, http.StatusUnprocessableEntity, FieldErrorsResponse{Errors: fields})
}

// WriteUnprocessableMessage answers 422 with a bare JSON string body.
func WriteUnprocessableMessage(w http.ResponseWriter, msg string) {
	Write(w, http.StatusUnprocessableEntity, msg)
}

func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err, "An unexpected error occurred")
}

func WriteRateLimitError(w http.ResponseWriter, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	Write(w, http.StatusTooManyRequests, ErrorResponse{
		Error:   http.StatusText(http.StatusTooManyRequests),
		Message: "Too many requests. Please try again later.",
	})
}
