package api

import (
	"net/http"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/retry"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/sweep"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api/handlers"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api/middleware"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type RouterConfig struct {
	Store         *database.Store
	Bus           event.Bus
	Engine        *retry.Engine
	Sweeper       *sweep.Sweeper
	JWTSecret     string
	JWTExpiry     time.Duration
	CallbackToken string
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("ContentFlow API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Content pipeline orchestration: jobs, retries, webhooks, notifications"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	api := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)
	adminMw := middleware.AdminOnly()
	bearer := []map[string][]string{{"BearerAuth": {}}}

	authHandler := handlers.NewAuthHandler(cfg.Store, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Get current user info",
		Tags:        []string{"Auth"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, authHandler.Me)

	jobsHandler := handlers.NewJobsHandler(cfg.Store, cfg.Engine)
	huma.Register(api, huma.Operation{
		OperationID:   "jobs-create",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create a job and trigger processing",
		Tags:          []string{"Jobs"},
		Security:      bearer,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, jobsHandler.Create)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-list",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List own jobs",
		Tags:        []string{"Jobs"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-get",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get a job",
		Tags:        []string{"Jobs"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-retry",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/retry",
		Summary:     "Retry a failed job",
		Tags:        []string{"Jobs"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Retry)

	notificationsHandler := handlers.NewNotificationsHandler(cfg.Store)
	huma.Register(api, huma.Operation{
		OperationID: "notifications-list",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
		Tags:        []string{"Notifications"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, notificationsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "notifications-mark-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark a notification as read",
		Tags:        []string{"Notifications"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, notificationsHandler.MarkRead)

	huma.Register(api, huma.Operation{
		OperationID: "notifications-mark-all-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark all notifications as read",
		Tags:        []string{"Notifications"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, notificationsHandler.MarkAllRead)

	huma.Register(api, huma.Operation{
		OperationID: "notifications-delete",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete a notification",
		Tags:        []string{"Notifications"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, notificationsHandler.Delete)

	callbacksHandler := handlers.NewCallbacksHandler(cfg.Store, cfg.Bus, cfg.CallbackToken)
	huma.Register(api, huma.Operation{
		OperationID: "callbacks-job-result",
		Method:      http.MethodPost,
		Path:        "/callbacks/jobs",
		Summary:     "Workflow system reports a job result",
		Tags:        []string{"Callbacks"},
	}, callbacksHandler.JobResult)

	webhooksHandler := handlers.NewWebhooksHandler(cfg.Store)
	huma.Register(api, huma.Operation{
		OperationID: "admin-webhooks-list",
		Method:      http.MethodGet,
		Path:        "/admin/webhooks",
		Summary:     "List webhook endpoints",
		Tags:        []string{"Admin - Webhooks"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw, adminMw},
	}, webhooksHandler.List)

	huma.Register(api, huma.Operation{
		OperationID:   "admin-webhooks-create",
		Method:        http.MethodPost,
		Path:          "/admin/webhooks",
		Summary:       "Register a webhook endpoint",
		Tags:          []string{"Admin - Webhooks"},
		Security:      bearer,
		Middlewares:   huma.Middlewares{authMw, adminMw},
		DefaultStatus: http.StatusCreated,
	}, webhooksHandler.Create)

	huma.Register(api, huma.Operation{
		OperationID: "admin-webhooks-update",
		Method:      http.MethodPatch,
		Path:        "/admin/webhooks/{id}",
		Summary:     "Update a webhook endpoint",
		Tags:        []string{"Admin - Webhooks"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw, adminMw},
	}, webhooksHandler.Update)

	huma.Register(api, huma.Operation{
		OperationID: "admin-webhooks-delete",
		Method:      http.MethodDelete,
		Path:        "/admin/webhooks/{id}",
		Summary:     "Delete a webhook endpoint",
		Tags:        []string{"Admin - Webhooks"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw, adminMw},
	}, webhooksHandler.Delete)

	adminHandler := handlers.NewAdminHandler(cfg.Sweeper)
	huma.Register(api, huma.Operation{
		OperationID: "admin-sweep",
		Method:      http.MethodPost,
		Path:        "/admin/sweep",
		Summary:     "Run a timeout sweep across all categories",
		Tags:        []string{"Admin - Sweep"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw, adminMw},
	}, adminHandler.Sweep)
}
