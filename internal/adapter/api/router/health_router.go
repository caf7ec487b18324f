package router

import (
	"cakemarket/internal/adapter/api/handler"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupHealthRouter(e *echo.Echo) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/ready", healthHandler.CheckReadiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
