package api

import (
	"errors"

	"github.com/Domenick1991/flightbooking/internal/api/rpc"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string               `json:"error"`
	Code  string               `json:"code"`
	Field string               `json:"field,omitempty"`
	Seats []domain.SeatProblem `json:"seats,omitempty"`
}

// writeError renders err with the status shared with the gRPC transport.
// Seat conflicts carry the per-seat reasons.
func writeError(c *gin.Context, logger logrus.FieldLogger, err error) {
	code := rpc.Code(err)
	resp := errorResponse{Error: rpc.Message(err), Code: code.String()}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	var seats *domain.SeatUnavailableError
	if errors.As(err, &seats) {
		resp.Seats = seats.Problems
	}

	status := rpc.HTTPStatus(err)
	if status >= 500 {
		logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}
