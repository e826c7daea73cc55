package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/gin-gonic/gin"
)

// localLayout is accepted for timestamps sent without a zone; they are read as UTC.
const localLayout = "2006-01-02T15:04:05"

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(localLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or %s, got %q", localLayout, raw)
	}
	return t, nil
}

func (h *handlers) respondError(c *gin.Context, err error) {
	statusCode, kind := classify(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("request_id", c.GetString(requestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		message = internalMessage
	}
	c.AbortWithStatusJSON(statusCode, errorBody{Error: kind, Message: message})
}

func (h *handlers) badRequest(c *gin.Context, format string, args ...any) {
	h.respondError(c, fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...)))
}

// callerID reads X-Sharer-User-Id, writing a 400 when it is missing or malformed.
func (h *handlers) callerID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.GetHeader(userIDHeader))
	if raw == "" {
		h.badRequest(c, "%s header is required", userIDHeader)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid %s header %q", userIDHeader, raw)
		return 0, false
	}
	return id, true
}

func (h *handlers) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.badRequest(c, "invalid id %q", raw)
		return 0, false
	}
	return id, true
}

// pageParams reads from and size, defaulting to the first page.
func (h *handlers) pageParams(c *gin.Context) (from, size int, ok bool) {
	from, size = 0, h.defaultPageSize
	if raw := c.Query("from"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, "invalid from %q", raw)
			return 0, 0, false
		}
		from = v
	}
	if raw := c.Query("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, "invalid size %q", raw)
			return 0, 0, false
		}
		size = v
	}
	return from, size, true
}

// bindJSON decodes the body; a malformed body is a validation error.
func (h *handlers) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "malformed request body: %v", err)
		return false
	}
	return true
}

type createBookingBody struct {
	ItemID *int64 `json:"itemId"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

func (b createBookingBody) toRequest() (models.CreateBookingRequest, error) {
	var req models.CreateBookingRequest
	if b.ItemID != nil {
		req.ItemID = *b.ItemID
	}
	if b.Start != "" {
		t, err := parseTimestamp(b.Start)
		if err != nil {
			return req, fmt.Errorf("%w: start: %v", domain.ErrValidation, err)
		}
		req.Start = t
	}
	if b.End != "" {
		t, err := parseTimestamp(b.End)
		if err != nil {
			return req, fmt.Errorf("%w: end: %v", domain.ErrValidation, err)
		}
		req.End = t
	}
	return req, nil
}

// checkDates rejects a start in the past or an end that is not in the
// future. Missing dates are left for the booking service to report.
func checkDates(req models.CreateBookingRequest, now time.Time) error {
	if !req.Start.IsZero() && req.Start.Before(now) {
		return fmt.Errorf("%w: start must not be in the past", domain.ErrValidation)
	}
	if !req.End.IsZero() && !req.End.After(now) {
		return fmt.Errorf("%w: end must be in the future", domain.ErrValidation)
	}
	return nil
}

func (h *handlers) createBooking(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}

	var body createBookingBody
	if !h.bindJSON(c, &body) {
		return
	}
	req, err := body.toRequest()
	if err == nil {
		err = checkDates(req, h.svc.Clock.Now())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	booking, err := h.svc.Bookings.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *handlers) approveBooking(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	bookingID, ok := h.pathID(c)
	if !ok {
		return
	}

	raw := c.Query("approved")
	approved, err := strconv.ParseBool(raw)
	if err != nil {
		h.badRequest(c, "approved must be true or false, got %q", raw)
		return
	}

	booking, err := h.svc.Bookings.ApproveBooking(c.Request.Context(), userID, bookingID, approved)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *handlers) getBooking(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	bookingID, ok := h.pathID(c)
	if !ok {
		return
	}

	booking, err := h.svc.Bookings.GetBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *handlers) listBookerBookings(c *gin.Context) {
	h.listBookings(c, models.RoleBooker)
}

func (h *handlers) listOwnerBookings(c *gin.Context) {
	h.listBookings(c, models.RoleOwner)
}

func (h *handlers) listBookings(c *gin.Context, role models.BookingRole) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	from, size, ok := h.pageParams(c)
	if !ok {
		return
	}

	bookings, err := h.svc.Bookings.ListBookings(c.Request.Context(), role, userID, c.DefaultQuery("state", string(models.StateAll)), from, size)
	if err != nil {
		if errors.Is(err, models.ErrUnknownState) {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
				Error:   kindBadRequest,
				Message: "Unknown state: " + c.Query("state"),
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
