package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/convoyhq/convoy/pkg/database"
	"github.com/convoyhq/convoy/pkg/events"
	"github.com/convoyhq/convoy/pkg/models"
	"github.com/convoyhq/convoy/pkg/services"
)

// journeyAPI is the slice of JourneyService the handlers need. Narrowed to an
// interface so handler tests can stub the service layer.
type journeyAPI interface {
	StartGroupJourney(ctx context.Context, userID string, req models.StartGroupJourneyRequest) (*models.GroupJourneyDetail, error)
	StartInstance(ctx context.Context, userID, journeyID string, req models.StartInstanceRequest) (*models.JourneyInstance, error)
	PauseInstance(ctx context.Context, userID, instanceID string) (*models.JourneyInstance, error)
	ResumeInstance(ctx context.Context, userID, instanceID string) (*models.JourneyInstance, error)
	CompleteInstance(ctx context.Context, userID, instanceID string, req models.CompleteInstanceRequest) (*models.JourneyInstance, error)
	GetJourney(ctx context.Context, userID, journeyID string) (*models.GroupJourneyDetail, error)
	GetMyInstance(ctx context.Context, userID, journeyID string) (*models.JourneyInstance, error)
	GetActiveForGroup(ctx context.Context, userID, groupID string) (*models.GroupJourney, error)
	Summary(ctx context.Context, userID, journeyID string) (*models.JourneySummary, error)
	ListEvents(ctx context.Context, userID, journeyID string, since *time.Time, limit int) ([]models.RideEvent, error)
	PostEvent(ctx context.Context, userID, journeyID string, req models.PostRideEventRequest) (*models.RideEvent, error)
}

type locationAPI interface {
	UpdateLocation(ctx context.Context, userID, instanceID string, req models.LocationUpdateRequest) (*models.JourneyInstance, error)
}

// Config carries the server's HTTP settings.
type Config struct {
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	ShutdownWait   time.Duration
}

// Server wires the HTTP and websocket surface over the service layer.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	journeys   journeyAPI
	locations  locationAPI
	hub        *events.Hub
	dbClient   *database.Client
	verifier   TokenVerifier
	cfg        Config
}

func NewServer(cfg Config, journeys *services.JourneyService, locations *services.LocationService, hub *events.Hub, dbClient *database.Client, verifier TokenVerifier) *Server {
	s := &Server{
		echo:      echo.New(),
		journeys:  journeys,
		locations: locations,
		hub:       hub,
		dbClient:  dbClient,
		verifier:  verifier,
		cfg:       cfg,
	}
	s.echo.HTTPErrorHandler = httpErrorHandler
	s.setupMiddleware()
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(requestID())
	s.echo.Use(securityHeaders())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)

	auth := requireAuth(s.verifier)
	limited := newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).middleware()

	g := s.echo.Group("/group-journey", auth)
	g.POST("/start", s.startGroupJourneyHandler, limited)
	g.GET("/active/:groupId", s.activeForGroupHandler, limited)
	g.GET("/:id", s.getJourneyHandler, limited)
	g.GET("/:id/my-instance", s.myInstanceHandler, limited)
	g.GET("/:id/summary", s.summaryHandler, limited)
	g.GET("/:id/events", s.listEventsHandler, limited)
	g.POST("/:id/events", s.postEventHandler, limited)
	g.POST("/:id/start-my-instance", s.startInstanceHandler, limited)

	// Location updates skip the per-user limiter: the service applies its own
	// ingest throttle tuned for GPS sample rates.
	inst := s.echo.Group("/group-journey/instance", auth)
	inst.POST("/:id/location", s.locationHandler)
	inst.POST("/:id/pause", s.pauseInstanceHandler, limited)
	inst.POST("/:id/resume", s.resumeInstanceHandler, limited)
	inst.POST("/:id/complete", s.completeInstanceHandler, limited)

	s.echo.GET("/ws", s.wsHandler, auth)
}

// Start blocks until the server stops serving.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	wait := s.cfg.ShutdownWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
