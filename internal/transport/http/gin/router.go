package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/service/admin"
	"github.com/kirinyoku/washq/internal/service/booking"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Availability interface {
	GetDayAvailability(ctx context.Context, day time.Time) (domain.DayAvailability, error)
	GetAvailability(ctx context.Context, start, end time.Time) ([]domain.DayAvailability, error)
}

type Bookings interface {
	CreateHold(ctx context.Context, req booking.HoldRequest) (*booking.HoldResult, error)
	UploadPaymentSlip(ctx context.Context, userID, bookingID uuid.UUID, declaredType string, data []byte) (*domain.Booking, error)
	CancelHold(ctx context.Context, userID, bookingID uuid.UUID) (*domain.Booking, error)
	GetBooking(ctx context.Context, id, owner uuid.UUID) (*domain.BookingDetails, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	PaymentChannels(ctx context.Context) ([]domain.PaymentChannel, error)
}

type Admin interface {
	Transition(ctx context.Context, id uuid.UUID, next domain.BookingStatus, notes, adminID string) (*domain.Booking, error)
	VerifyPayment(ctx context.Context, id uuid.UUID, adminID string) (*domain.Booking, error)
	RejectPayment(ctx context.Context, id uuid.UUID, reason, adminID string) (*domain.Booking, error)
	AssignRunner(ctx context.Context, id uuid.UUID, assignee, adminID string) (*domain.Booking, error)
	ListBookings(ctx context.Context, date *time.Time, status domain.BookingStatus, page, limit int) (*domain.BookingPage, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error)
	UpdateBusinessHours(ctx context.Context, hours []domain.BusinessHours) error
	UpsertOverride(ctx context.Context, o domain.SlotOverride) error
	DeleteOverride(ctx context.Context, date string, slotStart time.Time) error
	ListPaymentChannels(ctx context.Context) ([]domain.PaymentChannel, error)
	UpdatePaymentChannels(ctx context.Context, channels []domain.PaymentChannel, qr *admin.QRImage) ([]domain.PaymentChannel, error)
}

type Idempotency interface {
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, payload []byte) error
	GetResult(ctx context.Context, key string) (payload []byte, found, locked bool, err error)
	Release(ctx context.Context, key string) error
}

// Deps are the collaborators of the HTTP surface. Idempotency, HoldLimiter,
// Hub and Line are optional.
type Deps struct {
	Availability Availability
	Bookings     Bookings
	Admin        Admin
	Idempotency  Idempotency
	HoldLimiter  Limiter
	Hub          *Hub
	Line         *LineWebhook
	Location     *time.Location
	// MaxSlipBytes bounds the multipart body of slip uploads.
	MaxSlipBytes int64
}

type handlers struct {
	Deps
}

func NewRouter(
	deps Deps,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.MaxSlipBytes <= 0 {
		deps.MaxSlipBytes = 6 << 20
	}

	h := &handlers{Deps: deps}

	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/availability", h.getAvailability)

	r.POST("/bookings", HoldRateLimit(deps.HoldLimiter, logger), h.createBooking)
	r.GET("/bookings/:id", h.getBooking)
	r.POST("/bookings/:id/slip", h.uploadSlip)
	r.POST("/bookings/:id/cancel", h.cancelBooking)
	r.GET("/users/:id/bookings", h.listUserBookings)
	r.GET("/payment-channels", h.getPaymentChannels)

	if deps.Hub != nil {
		r.GET("/ws/availability", deps.Hub.Handle)
	}

	if deps.Line != nil {
		r.POST("/webhook/line", deps.Line.Handle)
	}

	adm := r.Group("/admin")
	{
		adm.GET("/bookings", h.adminListBookings)
		adm.GET("/dashboard", h.adminDashboard)
		adm.POST("/bookings/:id/transition", h.adminTransition)
		adm.POST("/bookings/:id/verify", h.adminVerify)
		adm.POST("/bookings/:id/reject", h.adminReject)
		adm.POST("/bookings/:id/assign", h.adminAssign)
		adm.GET("/business-hours", h.adminListBusinessHours)
		adm.PUT("/business-hours", h.adminUpdateBusinessHours)
		adm.PUT("/slot-overrides", h.adminUpsertOverride)
		adm.DELETE("/slot-overrides", h.adminDeleteOverride)
		adm.GET("/payment-channels", h.adminListPaymentChannels)
		adm.PUT("/payment-channels", h.adminUpdatePaymentChannels)
	}

	return r
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
