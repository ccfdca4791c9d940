package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

const genericFailure = "Something went wrong. Please try again."

// fail maps a service error to the response the user sees. Business errors
// become a flash message on a redirect to `to`; everything unexpected is
// logged and reduced to a generic message.
func fail(c *fiber.Ctx, to, action string, err error) error {
	var ve *services.ValidationError
	var se *services.StockError
	switch {
	case errors.As(err, &ve):
		applog.Security(c, "validation.fail", map[string]any{"action": action, "field": ve.Field})
		return redirectWith(c, to, "error", capitalize(ve.Field)+" "+ve.Message+".")
	case errors.As(err, &se):
		applog.Info(c, action+".stock", map[string]any{"product_id": se.ProductID, "requested": se.Requested, "available": se.Available})
		return redirectWith(c, to, "error", se.Error())
	case errors.Is(err, services.ErrForbidden):
		applog.Security(c, "access.denied."+action, nil)
		return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Access denied"})
	case errors.Is(err, services.ErrNotFound):
		return notFound(c, "Not found")
	case errors.Is(err, services.ErrEmptyCart):
		return redirectWith(c, to, "error", "Your cart is empty!")
	case errors.Is(err, services.ErrProductHasOrders):
		return redirectWith(c, to, "error", "Cannot delete product with existing orders.")
	case errors.Is(err, services.ErrCheckoutFailed):
		applog.Error(c, action+".fail", err, nil)
		return redirectWith(c, to, "error", "An error occurred while processing your order. Please try again.")
	default:
		applog.Error(c, action+".fail", err, nil)
		return redirectWith(c, to, "error", genericFailure)
	}
}

func capitalize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// cartStockMessage is the wording used when a cart change exceeds stock.
func cartStockMessage(se *services.StockError) string {
	return fmt.Sprintf("Insufficient stock available. Only %d items in stock.", se.Available)
}

// ErrorHandler renders a friendly page and never exposes err to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := genericFailure
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch {
		case code == fiber.StatusNotFound:
			msg = "Page not found"
		case code == fiber.StatusForbidden:
			msg = "Access denied"
		case code == fiber.StatusMethodNotAllowed:
			msg = "Method not allowed"
		case code == fiber.StatusRequestEntityTooLarge:
			msg = "Request too large"
		case code == fiber.StatusTooManyRequests:
			msg = "Too many requests. Please try again later."
		case code < 500:
			msg = "Bad request"
		}
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}
