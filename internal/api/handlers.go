package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createReservationReq struct {
	TelegramID int64         `json:"telegram_id" binding:"required"`
	Username   string        `json:"username,omitempty"`
	FirstName  string        `json:"first_name,omitempty"`
	LastName   string        `json:"last_name,omitempty"`
	Profile    model.Profile `json:"profile"`
	Start      string        `json:"start" binding:"required"` // RFC3339
	ResourceID string        `json:"resource_id,omitempty"`
}

type rescheduleReq struct {
	Start string `json:"start" binding:"required"` // RFC3339
}

// GET /api/availability?days=N
func (s *Server) availabilityHandler(c *gin.Context) {
	days := s.cfg.DefaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > s.cfg.MaxDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 0 and " + strconv.Itoa(s.cfg.MaxDays)})
			return
		}
		days = n
	}

	slots, err := s.reservations.Availability(c.Request.Context(), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "slots": slots})
}

// POST /api/reservations
func (s *Server) createReservationHandler(c *gin.Context) {
	var req createReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, RFC3339 expected"})
		return
	}

	ctx := c.Request.Context()

	user, err := s.users.GetByTelegramID(ctx, req.TelegramID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if user == nil {
		user, err = s.users.RegisterUser(ctx, req.TelegramID, req.Username, req.FirstName, req.LastName, "")
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	if err := s.users.UpdateProfile(ctx, user, req.Profile); err != nil {
		s.fail(c, err)
		return
	}

	reservation, err := s.reservations.BookRequest(ctx, req.ResourceID, user.AsRequester(), start)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// GET /api/reservations/:id
func (s *Server) getReservationHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reservation, err := s.reservations.Get(c.Request.Context(), id, 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// POST /api/reservations/:id/reschedule
func (s *Server) rescheduleHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req rescheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start, RFC3339 expected"})
		return
	}

	reservation, err := s.reservations.RescheduleRequest(c.Request.Context(), id, 0, start)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// DELETE /api/reservations/:id
func (s *Server) cancelHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reservation, err := s.reservations.CancelRequest(c.Request.Context(), id, 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// GET /api/users/:telegram_id/reservations
func (s *Server) listUserReservationsHandler(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	ctx := c.Request.Context()
	user, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	list, err := s.reservations.ListActive(ctx, user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []*model.Reservation{}
	}
	c.JSON(http.StatusOK, list)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// fail отвечает кодом по таксономии ошибок ядра
func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("API request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   err.Error(),
		"message": service.UserMessage(err),
	})
}

// StatusFor HTTP-код для ошибки ядра
func StatusFor(err error) int {
	var (
		remoteErr       *service.RemoteError
		inconsistentErr *service.InconsistentStateError
	)

	switch {
	case errors.Is(err, service.ErrSlotTaken),
		errors.Is(err, service.ErrNoFreeResource),
		errors.Is(err, service.ErrNotPlanned):
		return http.StatusConflict
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.As(err, &inconsistentErr), errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
