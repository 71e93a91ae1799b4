package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	applogger "GridCast/pkg/logger"
)

// Recover turns a handler panic into a logged 500 response instead of
// tearing down the server.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					if l != nil {
						l.Error("panic recovered",
							applogger.String("uri", c.Request().RequestURI),
							applogger.Error(err),
							applogger.String("stack", string(debug.Stack())),
						)
					} else {
						log.Printf("PANIC: %v\n%s", err, debug.Stack())
					}
					_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": "Internal Server Error",
					})
				}
			}()
			return next(c)
		}
	}
}
