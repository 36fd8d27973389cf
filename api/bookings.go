package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/invoice"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	service  booking.BookingUseCase
	invoices invoice.InvoiceUseCase
	logger   logrus.FieldLogger
}

type cancelResponse struct {
	Booking          *domain.Booking `json:"booking"`
	AlreadyCancelled bool            `json:"already_cancelled"`
}

func NewBookingHandler(service booking.BookingUseCase, invoices invoice.InvoiceUseCase, logger logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{service: service, invoices: invoices, logger: logger}
}

// Register expects router to sit behind Authenticate.
func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/cancel", h.cancel)
	router.GET("/:id/invoice", h.invoice)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.NewValidationError("body", err.Error()))
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), identityFrom(c), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CancelBooking(c.Request.Context(), identityFrom(c), id)
	already := errors.Is(err, domain.ErrAlreadyCancelled)
	if err != nil && !already {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse{Booking: b, AlreadyCancelled: already})
}

func (h *BookingHandler) invoice(c *gin.Context) {
	id, ok := h.bookingID(c)
	if !ok {
		return
	}
	inv, err := h.invoices.LineItems(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if c.Query("format") != "pdf" {
		c.JSON(http.StatusOK, inv)
		return
	}

	doc, err := h.invoices.RenderPDF(inv)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+inv.BookingReference+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (h *BookingHandler) bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NewValidationError("id", "invalid booking id"))
		return uuid.Nil, false
	}
	return id, true
}
