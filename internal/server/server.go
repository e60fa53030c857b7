package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shinyyama/unimarket-backend/internal/config"
	"github.com/shinyyama/unimarket-backend/internal/events"
	"github.com/shinyyama/unimarket-backend/internal/handler"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	appmw "github.com/shinyyama/unimarket-backend/internal/middleware"
	"github.com/shinyyama/unimarket-backend/internal/observability"
	"github.com/shinyyama/unimarket-backend/internal/realtime"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

// Deps are the collaborators built by main from configuration.
type Deps struct {
	Verifier  appmw.Verifier
	Redis     redis.Cmdable // nil disables the user cache
	Publisher events.Publisher
	Hub       *realtime.Hub
}

type Server struct {
	e   *echo.Echo
	db  *gorm.DB
	log logrus.FieldLogger
	hub *realtime.Hub
}

func New(cfg *config.Config, db *gorm.DB, log logrus.FieldLogger, deps Deps) *Server {
	if log == nil {
		log = logging.Discard()
	}
	if deps.Hub == nil {
		deps.Hub = realtime.NewHub(log)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewNoopPublisher(log, "not configured")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(appmw.RequestContext)
	e.Use(appmw.RequestLogger(log))
	e.Use(observability.HTTPMetricsMiddleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	userRepo := repository.NewCachedUserRepository(repository.NewUserRepository(db), deps.Redis, cfg.UserCacheTTL, log)
	itemRepo := repository.NewItemRepository(db)
	convRepo := repository.NewConversationRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	notifSvc := service.NewNotificationService(notifRepo, log)
	convSvc := service.NewConversationService(convRepo, itemRepo, userRepo, notifSvc, deps.Publisher, log)
	itemSvc := service.NewItemService(itemRepo)
	userSvc := service.NewUserService(userRepo)

	convHandler := handler.NewConversationHandler(convSvc, deps.Hub, log)
	notifHandler := handler.NewNotificationHandler(notifSvc, log)
	itemHandler := handler.NewItemHandler(itemSvc, log)
	userHandler := handler.NewUserHandler(userSvc, log)
	wsHandler := handler.NewWSHandler(convSvc, deps.Hub, cfg.AllowedOrigins, log)

	e.GET("/healthz", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"ok": "false", "db": "unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"ok":     "true",
			"events": events.PublisherMode(deps.Publisher),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := appmw.NewAuthMiddleware(deps.Verifier)
	api := e.Group("/api")
	api.GET("/items", itemHandler.List)
	api.GET("/items/:id", itemHandler.Get)
	api.GET("/users/:id/public", userHandler.GetPublic)

	authed := api.Group("", auth.RequireAuth)
	authed.POST("/conversations", convHandler.Create)
	authed.GET("/conversations", convHandler.List)
	authed.GET("/conversations/:id", convHandler.Get)
	authed.DELETE("/conversations/:id", convHandler.Delete)
	authed.GET("/conversations/:id/messages", convHandler.ListMessages)
	authed.POST("/conversations/:id/messages", convHandler.SendMessage,
		appmw.MessageRateLimiter(cfg.MessageRateLimit, cfg.MessageRateBurst))
	authed.GET("/conversations/:id/ws", wsHandler.Subscribe)
	authed.GET("/notifications", notifHandler.List)
	authed.POST("/notifications/read", notifHandler.MarkAllRead)

	return &Server{e: e, db: db, log: log, hub: deps.Hub}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("starting server")
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// errorHandler renders echo and middleware errors with the same envelope the handlers use.
func errorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = strings.ToLower(http.StatusText(code))
			}
		} else {
			logging.FromContext(c.Request().Context(), log).WithError(err).Error("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, handler.NewErrorResponse(handler.CodeForStatus(code), msg))
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response failed")
		}
	}
}
