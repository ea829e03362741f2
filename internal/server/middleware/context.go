package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/notegraph/backend/pkg/service"
)

// App holds the shared dependencies handlers need.
type App struct {
	Service *service.GraphService
	Queue   *amqp091.Channel
}

// AppContext wraps the echo context with application state.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware injects the shared App into every request context.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{
				Context: c,
				App:     app,
			})
		}
	}
}
