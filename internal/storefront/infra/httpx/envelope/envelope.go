// Package envelope writes the uniform JSON response of the storefront API:
// {success, message, data, error:{code}}.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
)

// Codes that do not come from an apperr.Kind.
const (
	CodeRateLimited = "TOO_MANY_REQUESTS"
	CodeInFlight    = "REQUEST_IN_PROGRESS"
)

type ErrorBody struct {
	Code string `json:"code"`
}

// Response is either a success (Error nil) or a failure (Data nil, Error set).
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

func Fail(code, message string) Response {
	return Response{Success: false, Message: message, Error: &ErrorBody{Code: code}}
}

// FromError maps err to its status and failure body. Internal causes are not exposed.
func FromError(err error) (int, Response) {
	kind := apperr.KindOf(err)
	return StatusFor(kind), Fail(string(kind), apperr.Message(err))
}

// StatusFor maps every error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Validation, apperr.BadRequest, apperr.CartEmpty, apperr.OutOfStock:
		return http.StatusBadRequest
	case apperr.Conflict, apperr.StockLimit:
		return http.StatusConflict
	case apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func Write(w http.ResponseWriter, status int, resp Response) {
	WriteJSON(w, status, resp)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, err error) {
	status, resp := FromError(err)
	Write(w, status, resp)
}
