package apperr

import (
	"github.com/labstack/echo/v4"
)

// Respond writes err as {"error": "..."} with the status its kind maps to.
func Respond(c echo.Context, err error) error {
	return c.JSON(HTTPStatus(err), echo.Map{"error": PublicMessage(err)})
}
