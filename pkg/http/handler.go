package http

import "github.com/labstack/echo/v4"

// Handler is anything that can attach its routes to an Echo instance.
// The server accepts one handler; group several behind a composite if
// more are needed.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
