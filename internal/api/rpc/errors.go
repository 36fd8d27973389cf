// Package rpc holds what the gRPC and REST transports share: the mapping from
// domain errors to status codes, and conversion between Go values and
// structpb messages.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const internalMessage = "internal error"

// Code maps an error to its gRPC code. Unknown errors are Internal.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, auth.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInvalidPayment), errors.Is(err, domain.ErrInvalidState):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrSeatUnavailable):
		return codes.Aborted
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// Message is the caller-facing text. Internal failures never leak details.
func Message(err error) string {
	if Code(err) == codes.Internal {
		return internalMessage
	}
	return err.Error()
}

func Status(err error) *status.Status {
	return status.New(Code(err), Message(err))
}

func Error(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return Status(err).Err()
}

// HTTPStatus derives the REST status from the gRPC code, except that payment
// rejections are 402 and lifecycle conflicts are 409.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	}
	return runtime.HTTPStatusFromCode(Code(err))
}
