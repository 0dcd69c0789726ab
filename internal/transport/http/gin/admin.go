package httpgin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/washq/internal/domain"
)

func adminID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Admin-ID")); id != "" {
		return id
	}
	return "admin"
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// @Summary  List bookings
// @Param    date    query  string  false  "slot date (YYYY-MM-DD)"
// @Param    status  query  string  false  "booking status"
// @Param    page    query  int     false  "1-based page"
// @Param    limit   query  int     false  "page size"
// @Success  200  {object}  domain.BookingPage
// @Router   /admin/bookings [get]
func (h *handlers) adminListBookings(c *gin.Context) {
	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := domain.ParseDate(raw, h.Location)
		if err != nil {
			respondErr(c, err)
			return
		}
		date = &d
	}

	page, err := h.Admin.ListBookings(
		c.Request.Context(),
		date,
		domain.BookingStatus(strings.ToUpper(c.Query("status"))),
		parseIntDefault(c.Query("page"), 1),
		parseIntDefault(c.Query("limit"), 20),
	)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// @Summary  Dashboard counters
// @Success  200  {object}  domain.DashboardStats
// @Router   /admin/dashboard [get]
func (h *handlers) adminDashboard(c *gin.Context) {
	stats, err := h.Admin.DashboardStats(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Summary  Move a booking to another status
// @Param    id          path    string             true  "Booking ID (uuid)"
// @Param    X-Admin-ID  header  string             false "acting admin"
// @Param    req         body    TransitionRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "transition not allowed"
// @Router   /admin/bookings/{id}/transition [post]
func (h *handlers) adminTransition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.Admin.Transition(c.Request.Context(), id, domain.BookingStatus(req.Status), req.Notes, adminID(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  Verify the payment slip and confirm the booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /admin/bookings/{id}/verify [post]
func (h *handlers) adminVerify(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	b, err := h.Admin.VerifyPayment(c.Request.Context(), id, adminID(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  Reject the payment slip
// @Param    id   path  string                true  "Booking ID (uuid)"
// @Param    req  body  RejectPaymentRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /admin/bookings/{id}/reject [post]
func (h *handlers) adminReject(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.Admin.RejectPayment(c.Request.Context(), id, req.Reason, adminID(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  Assign a pickup runner
// @Param    id   path  string               true  "Booking ID (uuid)"
// @Param    req  body  AssignRunnerRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /admin/bookings/{id}/assign [post]
func (h *handlers) adminAssign(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req AssignRunnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.Admin.AssignRunner(c.Request.Context(), id, req.Assignee, adminID(c))
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  List business hours
// @Success  200  {array}  domain.BusinessHours
// @Router   /admin/business-hours [get]
func (h *handlers) adminListBusinessHours(c *gin.Context) {
	hours, err := h.Admin.ListBusinessHours(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, hours)
}

// @Summary  Replace business hours
// @Param    req  body  BusinessHoursRequest  true  "payload"
// @Success  204
// @Failure  400  {object}  ErrorResponse
// @Router   /admin/business-hours [put]
func (h *handlers) adminUpdateBusinessHours(c *gin.Context) {
	var req BusinessHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.Admin.UpdateBusinessHours(c.Request.Context(), req.Hours); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary  Close a slot or change its quota
// @Param    req  body  SlotOverrideRequest  true  "payload"
// @Success  204
// @Failure  400  {object}  ErrorResponse
// @Router   /admin/slot-overrides [put]
func (h *handlers) adminUpsertOverride(c *gin.Context) {
	var req SlotOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	slotStart, err := parseRFC3339(req.SlotStart)
	if err != nil {
		badRequest(c, "invalid slot_start (RFC3339)")
		return
	}

	err = h.Admin.UpsertOverride(c.Request.Context(), domain.SlotOverride{
		Date:      req.Date,
		SlotStart: slotStart,
		Closed:    req.Closed,
		Quota:     req.Quota,
		Reason:    req.Reason,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary  Remove a slot override
// @Param    date        query  string  true  "YYYY-MM-DD"
// @Param    slot_start  query  string  true  "RFC3339"
// @Success  204
// @Failure  404  {object}  ErrorResponse
// @Router   /admin/slot-overrides [delete]
func (h *handlers) adminDeleteOverride(c *gin.Context) {
	// An unescaped "+" in the offset arrives as a space.
	slotStart, err := parseRFC3339(strings.ReplaceAll(c.Query("slot_start"), " ", "+"))
	if err != nil {
		badRequest(c, "invalid slot_start (RFC3339)")
		return
	}

	if err := h.Admin.DeleteOverride(c.Request.Context(), c.Query("date"), slotStart); err != nil {
		respondErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
