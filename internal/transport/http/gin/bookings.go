package httpgin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	redisrepo "github.com/kirinyoku/washq/internal/repository/redis"
	"github.com/kirinyoku/washq/internal/service/booking"
)

// @Summary  Slot availability for one day or a date range
// @Param    date  query  string  true   "first day (YYYY-MM-DD)"
// @Param    end   query  string  false  "last day (YYYY-MM-DD), at most 30 days after date"
// @Success  200  {array}   domain.DayAvailability
// @Failure  400  {object}  ErrorResponse
// @Router   /availability [get]
func (h *handlers) getAvailability(c *gin.Context) {
	start, err := domain.ParseDate(c.Query("date"), h.Location)
	if err != nil {
		respondErr(c, err)
		return
	}

	end := start
	if raw := c.Query("end"); raw != "" {
		if end, err = domain.ParseDate(raw, h.Location); err != nil {
			respondErr(c, err)
			return
		}
	}

	days, err := h.Availability.GetAvailability(c.Request.Context(), start, end)
	if err != nil {
		respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, days, "public, max-age=10", true)
}

// @Summary  Create a booking hold (idempotent)
// @Param    req  body  CreateBookingRequest  true  "payload"
// @Param    Idempotency-Key  header  string  false  "replay key"
// @Success  201  {object}  booking.HoldResult
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "slot unavailable / idem in progress"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /bookings [post]
func (h *handlers) createBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	slotStart, err := parseRFC3339(req.SlotStart)
	if err != nil {
		badRequest(c, "invalid slot_start (RFC3339)")
		return
	}

	ctx := c.Request.Context()

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	var idemStorageKey string
	if h.Idempotency != nil && idemKey != "" {
		idemStorageKey = redisrepo.HoldKey(req.UserID, idemKey)

		if payload, found, _, err := h.Idempotency.GetResult(ctx, idemStorageKey); err == nil && found {
			replay(c, idemKey, payload)
			return
		}

		locked, err := h.Idempotency.AcquireLock(ctx, idemStorageKey, 60*time.Second)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !locked {
			if payload, found, _, err := h.Idempotency.GetResult(ctx, idemStorageKey); err == nil && found {
				replay(c, idemKey, payload)
				return
			}
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}
	}

	res, err := h.Bookings.CreateHold(ctx, booking.HoldRequest{
		UserID:        uuid.MustParse(req.UserID),
		Services:      req.Services,
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		SamePoint:     req.SamePoint,
		SlotStart:     slotStart,
		PriceEstimate: req.PriceEstimate,
		Notes:         req.Notes,
	})
	if err != nil {
		if idemStorageKey != "" {
			_ = h.Idempotency.Release(ctx, idemStorageKey)
		}
		respondErr(c, err)
		return
	}

	if idemStorageKey != "" {
		b, _ := json.Marshal(res)
		_ = h.Idempotency.SaveResult(ctx, idemStorageKey, b)
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, res)
}

func replay(c *gin.Context, idemKey string, payload []byte) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
}

// @Summary  Get booking with payment and job
// @Param    id       path   string  true   "Booking ID (uuid)"
// @Param    user_id  query  string  false  "restrict to this customer"
// @Success  200  {object}  domain.BookingDetails
// @Failure  404  {object}  ErrorResponse
// @Router   /bookings/{id} [get]
func (h *handlers) getBooking(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var owner uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		var err error
		if owner, err = uuid.Parse(raw); err != nil {
			badRequest(c, "invalid user_id")
			return
		}
	}

	d, err := h.Bookings.GetBooking(c.Request.Context(), id, owner)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// @Summary  Upload payment slip
// @Accept   multipart/form-data
// @Param    id       path      string  true  "Booking ID (uuid)"
// @Param    user_id  formData  string  true  "Customer ID (uuid)"
// @Param    slip     formData  file    true  "jpeg, png or gif, at most 5MB"
// @Success  200  {object}  BookingResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "hold expired / not pending payment"
// @Router   /bookings/{id}/slip [post]
func (h *handlers) uploadSlip(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxSlipBytes)

	userID, err := uuid.Parse(c.PostForm("user_id"))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "slip file too large")
			return
		}
		badRequest(c, "invalid user_id")
		return
	}

	fh, err := c.FormFile("slip")
	if err != nil {
		badRequest(c, "missing slip file")
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable slip file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "unreadable slip file")
		return
	}

	b, err := h.Bookings.UploadPaymentSlip(c.Request.Context(), userID, id, fh.Header.Get("Content-Type"), data)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  Cancel an unpaid hold
// @Param    id   path  string                true  "Booking ID (uuid)"
// @Param    req  body  CancelBookingRequest  true  "payload"
// @Success  200  {object}  BookingResponse
// @Failure  409  {object}  ErrorResponse
// @Router   /bookings/{id}/cancel [post]
func (h *handlers) cancelBooking(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	b, err := h.Bookings.CancelHold(c.Request.Context(), uuid.MustParse(req.UserID), id)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, BookingResponse{Booking: b})
}

// @Summary  List bookings of a customer
// @Param    id  path  string  true  "User ID (uuid)"
// @Success  200  {array}  domain.Booking
// @Router   /users/{id}/bookings [get]
func (h *handlers) listUserBookings(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bookings, err := h.Bookings.ListUserBookings(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	if bookings == nil {
		bookings = []domain.Booking{}
	}

	c.JSON(http.StatusOK, bookings)
}
