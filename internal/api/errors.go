package api

import (
	"errors"
	"net/http"

	"shareit/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	kindNotFound       = "Not Found"
	kindBadRequest     = "Bad Request"
	kindBusinessRule   = "Business Rule Violation"
	kindConflict       = "Conflict"
	kindInternal       = "Internal Server Error"
	kindUnauthorized   = "Unauthorized"
	kindForbidden      = "Forbidden"
	kindTooManyRequest = "Too Many Requests"

	internalMessage = "Please contact support"
)

// errorBody is the JSON shape of every failed HTTP response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a service error to an HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, domain.ErrUnavailableItem), errors.Is(err, domain.ErrSelfBooking):
		return http.StatusBadRequest, kindBusinessRule
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, kindBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, kindConflict
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

// grpcError converts a service error to a status error.
func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnavailableItem),
		errors.Is(err, domain.ErrSelfBooking):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, internalMessage)
	}
}
