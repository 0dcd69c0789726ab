package httpgin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/washq/internal/domain"
	"github.com/kirinyoku/washq/internal/service/admin"
)

// @Summary  List active payment channels
// @Success  200  {object}  PaymentChannelsResponse
// @Router   /payment-channels [get]
func (h *handlers) getPaymentChannels(c *gin.Context) {
	channels, err := h.Bookings.PaymentChannels(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}

	if channels == nil {
		channels = []domain.PaymentChannel{}
	}

	c.JSON(http.StatusOK, PaymentChannelsResponse{Channels: channels})
}

// @Summary  List all payment channels
// @Success  200  {object}  PaymentChannelsResponse
// @Router   /admin/payment-channels [get]
func (h *handlers) adminListPaymentChannels(c *gin.Context) {
	channels, err := h.Admin.ListPaymentChannels(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}

	if channels == nil {
		channels = []domain.PaymentChannel{}
	}

	c.JSON(http.StatusOK, PaymentChannelsResponse{Channels: channels})
}

// @Summary  Upsert payment channels
// @Description  JSON body, or multipart with a "channels" JSON field and an
// @Description  optional "qr_file" image for the qr_code channel.
// @Accept   json
// @Accept   multipart/form-data
// @Param    req      body      PaymentChannelsRequest  false  "payload"
// @Param    qr_file  formData  file                    false  "jpeg, png or gif"
// @Success  200  {object}  PaymentChannelsResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /admin/payment-channels [put]
func (h *handlers) adminUpdatePaymentChannels(c *gin.Context) {
	var (
		req PaymentChannelsRequest
		qr  *admin.QRImage
	)

	if c.ContentType() == "multipart/form-data" {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxSlipBytes)

		if err := c.Request.ParseMultipartForm(h.MaxSlipBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				badRequest(c, "qr file too large")
				return
			}
			badRequest(c, "malformed multipart body")
			return
		}

		raw := c.PostForm("channels")
		if raw == "" {
			badRequest(c, "missing channels field")
			return
		}
		if err := json.Unmarshal([]byte(raw), &req.Channels); err != nil || len(req.Channels) == 0 {
			badRequest(c, "invalid channels field")
			return
		}

		if fh, err := c.FormFile("qr_file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, "unreadable qr file")
				return
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				badRequest(c, "unreadable qr file")
				return
			}
			qr = &admin.QRImage{ContentType: fh.Header.Get("Content-Type"), Data: data}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	channels, err := h.Admin.UpdatePaymentChannels(c.Request.Context(), req.Channels, qr)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, PaymentChannelsResponse{Channels: channels})
}
