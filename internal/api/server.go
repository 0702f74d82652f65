package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Reservations операции ядра, доступные через API
type Reservations interface {
	Availability(ctx context.Context, days int) (map[string][]model.Slot, error)
	BookRequest(ctx context.Context, resourceHint string, requester model.Requester, start time.Time) (*model.Reservation, error)
	Get(ctx context.Context, id, requesterID int64) (*model.Reservation, error)
	ListActive(ctx context.Context, requesterID int64) ([]*model.Reservation, error)
	RescheduleRequest(ctx context.Context, reservationID, requesterID int64, newStart time.Time) (*model.Reservation, error)
	CancelRequest(ctx context.Context, reservationID, requesterID int64) (*model.Reservation, error)
}

// Users пользователи, от имени которых бронирует API
type Users interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User, profile model.Profile) error
}

type Config struct {
	Addr         string
	StaticTokens []string
	JWTSecret    string
	DefaultDays  int
	MaxDays      int
}

// Server HTTP API для администраторов и внешних систем
type Server struct {
	cfg          Config
	reservations Reservations
	users        Users
	engine       *gin.Engine
	logger       *zap.Logger
}

func NewServer(cfg Config, reservations Reservations, users Users, logger *zap.Logger) *Server {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	if cfg.MaxDays < cfg.DefaultDays {
		cfg.MaxDays = max(30, cfg.DefaultDays)
	}

	s := &Server{
		cfg:          cfg,
		reservations: reservations,
		users:        users,
		logger:       logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(AuthMiddleware(s.cfg.StaticTokens, s.cfg.JWTSecret))
	{
		api.GET("/availability", s.availabilityHandler)

		reservations := api.Group("/reservations")
		{
			reservations.POST("", s.createReservationHandler)
			reservations.GET("/:id", s.getReservationHandler)
			reservations.POST("/:id/reschedule", s.rescheduleHandler)
			reservations.DELETE("/:id", s.cancelHandler)
		}

		api.GET("/users/:telegram_id/reservations", s.listUserReservationsHandler)
	}

	return router
}

// Handler для тестов и встраивания
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run слушает cfg.Addr до отмены ctx, затем плавно останавливается
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP API", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("Stopping HTTP API")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("subject", c.GetString(subjectKey)),
		)
	}
}
