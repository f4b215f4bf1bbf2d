package api

import (
	"github.com/averol/gohls/internal/api/controllers"
	"github.com/averol/gohls/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	dlCtrl := &controllers.DownloadController{App: app}

	e.GET("/", dlCtrl.Info)

	e.GET("/api/variants", dlCtrl.Variants)
	e.POST("/api/download", dlCtrl.Start)
	e.GET("/api/progress/:id", dlCtrl.Progress)
	e.GET("/api/downloads", dlCtrl.List)
	e.POST("/api/downloads/:id/cancel", dlCtrl.Cancel)
	e.DELETE("/api/downloads/:id", dlCtrl.Delete)
}
