package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type FlightHandler struct {
	service   flights.FlightUseCase
	inventory inventory.InventoryUseCase
	logger    logrus.FieldLogger
}

func NewFlightHandler(service flights.FlightUseCase, inventory inventory.InventoryUseCase, logger logrus.FieldLogger) *FlightHandler {
	return &FlightHandler{service: service, inventory: inventory, logger: logger}
}

// Register mounts the public catalogue routes. The admin chain guards seat
// overrides and audits.
func (h *FlightHandler) Register(router *gin.RouterGroup, admin ...gin.HandlerFunc) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/seats", h.seats)
	router.GET("/:id/seats/:seat", h.seat)
	router.PATCH("/:id/seats/:seat", chain(admin, h.updateSeat)...)
	router.GET("/:id/audit", chain(admin, h.audit)...)
}

type updateSeatRequest struct {
	Class              *string `json:"class"`
	IsAvailable        *bool   `json:"is_available"`
	PriceModifierCents *int64  `json:"price_modifier_cents"`
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Flight{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := h.flightID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) seats(c *gin.Context) {
	id, ok := h.flightID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetByID(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	seats, err := h.inventory.GetSeats(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if seats == nil {
		seats = []domain.Seat{}
	}
	c.JSON(http.StatusOK, seats)
}

func (h *FlightHandler) seat(c *gin.Context) {
	id, ok := h.flightID(c)
	if !ok {
		return
	}
	seat, err := h.inventory.GetSeat(c.Request.Context(), id, c.Param("seat"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seat)
}

func (h *FlightHandler) updateSeat(c *gin.Context) {
	id, ok := h.flightID(c)
	if !ok {
		return
	}
	var req updateSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.NewValidationError("body", err.Error()))
		return
	}
	patch := domain.SeatPatch{IsAvailable: req.IsAvailable, PriceModifierCents: req.PriceModifierCents}
	if req.Class != nil {
		class, err := domain.ParseSeatClass(*req.Class)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		patch.Class = &class
	}

	seat, err := h.inventory.UpdateSeatAttributes(c.Request.Context(), id, c.Param("seat"), patch)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seat)
}

func (h *FlightHandler) audit(c *gin.Context) {
	id, ok := h.flightID(c)
	if !ok {
		return
	}
	audit, err := h.inventory.Audit(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (h *FlightHandler) flightID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, h.logger, domain.NewValidationError("id", "invalid flight id"))
		return 0, false
	}
	return id, true
}

func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	return append(append(out, middleware...), handler)
}
