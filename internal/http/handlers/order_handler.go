package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type OrderHandler struct {
	Checkout *services.CheckoutService
	Orders   *services.OrderService
}

// Place runs the checkout transaction for the current user's cart.
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	u := currentUser(c)
	o, err := h.Checkout.Checkout(c.UserContext(), u.ID)
	if err != nil {
		return fail(c, "/cart", "order.place", err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id": o.ID,
		"total":    o.TotalAmount.StringFixed(2),
	})
	setFlash(c, "success", "Order placed successfully!")
	return c.Redirect("/order/confirmation?id="+o.ID, fiber.StatusSeeOther)
}

// Confirmation shows the thank-you page, with the order when ?id names one of the user's orders.
func (h *OrderHandler) Confirmation(c *fiber.Ctx) error {
	u := currentUser(c)
	data := fiber.Map{}
	if raw := c.Query("id"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			return notFound(c, "Order not found")
		}
		o, items, err := h.Orders.ForUser(c.UserContext(), u.ID, id)
		if err != nil {
			if errors.Is(err, services.ErrForbidden) {
				applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
			}
			return notFound(c, "Order not found")
		}
		data["Order"] = o
		data["Items"] = items
	}
	return render(c, "confirmation", data)
}

// History lists orders for the current logged-in user.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	u := currentUser(c)
	orders, err := h.Orders.ListByUser(c.UserContext(), u.ID)
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return render(c, "orders", fiber.Map{"Orders": orders})
}
