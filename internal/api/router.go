package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/logging"
	"shareit/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Services bundles what the HTTP handlers call into.
type Services struct {
	Users    *service.UserService
	Items    *service.ItemService
	Comments *service.CommentService
	Requests *service.RequestService
	Bookings domain.BookingService
	// Clock checks booking dates at the edge. Nil means the system clock.
	Clock domain.Clock
}

type handlers struct {
	svc             Services
	defaultPageSize int
	logger          *zerolog.Logger
}

// NewRouter builds the gin engine. quota may be nil, which disables the
// write quota regardless of config.
func NewRouter(cfg *config.Config, svc Services, quota domain.QuotaRepository, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	log := logging.Component(logger, "http")

	r := gin.New()
	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log))
	r.Use(metricsMiddleware())
	r.Use(NewHTTPAuth(cfg.API).Middleware())
	if quota != nil && cfg.Booking.WriteQuota.Enabled {
		r.Use(quotaMiddleware(quota, cfg.Booking.WriteQuota, log))
	}

	if svc.Clock == nil {
		svc.Clock = domain.SystemClock{}
	}
	h := &handlers{svc: svc, defaultPageSize: cfg.Booking.DefaultPageSize, logger: log}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := r.Group("/users")
	users.POST("", h.createUser)
	users.GET("", h.listUsers)
	users.GET("/:id", h.getUser)
	users.PATCH("/:id", h.updateUser)
	users.DELETE("/:id", h.deleteUser)

	items := r.Group("/items")
	items.POST("", h.createItem)
	items.GET("", h.listOwnerItems)
	items.GET("/search", h.searchItems)
	items.GET("/:id", h.getItem)
	items.PATCH("/:id", h.updateItem)
	items.POST("/:id/comment", h.addComment)

	requests := r.Group("/requests")
	requests.POST("", h.createRequest)
	requests.GET("", h.listOwnRequests)
	requests.GET("/all", h.listOtherRequests)
	requests.GET("/:id", h.getRequest)

	bookings := r.Group("/bookings")
	bookings.POST("", h.createBooking)
	bookings.GET("", h.listBookerBookings)
	bookings.GET("/owner", h.listOwnerBookings)
	bookings.GET("/:id", h.getBooking)
	bookings.PATCH("/:id", h.approveBooking)

	return r
}

// HTTPServer exposes the REST API alongside the gRPC service.
type HTTPServer struct {
	server *http.Server
	log    *zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, svc Services, quota domain.QuotaRepository, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
			Handler:           NewRouter(cfg, svc, quota, logger),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		log: logging.Component(logger, "http"),
	}
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
