package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

// Quantities arrive as text from forms and as numbers from JSON; json.Number
// takes both and validate.Qty does the parsing.
type addToCartInput struct {
	ProductID string      `json:"product_id" form:"product_id"`
	Quantity  json.Number `json:"quantity" form:"quantity"`
}

type quantityInput struct {
	Quantity json.Number `json:"quantity" form:"quantity"`
}

var badQuantity = fmt.Sprintf("Quantity must be a whole number between 1 and %d.", validate.MaxQty)

// quantity parses the submitted quantity, logging a validation failure.
func quantity(c *fiber.Ctx, raw json.Number) (int, bool) {
	n, ok := validate.Qty(string(raw))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "quantity"})
	}
	return n, ok
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	u := currentUser(c)
	cv, err := h.Cart.View(c.UserContext(), u.ID)
	if err != nil {
		log.Error(c, "cart.view.fail", err, nil)
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return render(c, "cart", fiber.Map{"Cart": cv})
}

// cartFail words stock errors the way the cart page shows them.
func cartFail(c *fiber.Ctx, to, action string, err error) error {
	var se *services.StockError
	if errors.As(err, &se) {
		log.Info(c, action+".stock", map[string]any{"product_id": se.ProductID, "requested": se.Requested, "available": se.Available})
		return redirectWith(c, to, "error", cartStockMessage(se))
	}
	return fail(c, to, action, err)
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	u := currentUser(c)
	to := back(c, "/products")

	var in addToCartInput
	if err := c.BodyParser(&in); err != nil {
		log.Security(c, "validation.fail", map[string]any{"field": "body"})
		return redirectWith(c, to, "error", badQuantity)
	}
	pid, ok := validate.ID(in.ProductID)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product_id"})
		return redirectWith(c, to, "error", "Please choose a product.")
	}
	qty, ok := quantity(c, in.Quantity)
	if !ok {
		return redirectWith(c, to, "error", badQuantity)
	}
	if err := h.Cart.Add(c.UserContext(), u.ID, pid, qty); err != nil {
		return cartFail(c, to, "cart.add", err)
	}
	log.Audit(c, "cart.add", map[string]any{"product_id": pid, "qty": qty})
	return redirectWith(c, to, "success", "Product added to cart successfully!")
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Cart item not found")
	}
	var in quantityInput
	if err := c.BodyParser(&in); err != nil {
		log.Security(c, "validation.fail", map[string]any{"field": "quantity"})
		return redirectWith(c, "/cart", "error", badQuantity)
	}
	qty, ok := quantity(c, in.Quantity)
	if !ok {
		return redirectWith(c, "/cart", "error", badQuantity)
	}
	if err := h.Cart.UpdateQuantity(c.UserContext(), u.ID, id, qty); err != nil {
		return cartFail(c, "/cart", "cart.update", err)
	}
	log.Audit(c, "cart.update", map[string]any{"item_id": id, "qty": qty})
	return redirectWith(c, "/cart", "success", "Cart updated successfully!")
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	u := currentUser(c)
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Cart item not found")
	}
	if err := h.Cart.Remove(c.UserContext(), u.ID, id); err != nil {
		return fail(c, "/cart", "cart.remove", err)
	}
	log.Audit(c, "cart.remove", map[string]any{"item_id": id})
	return redirectWith(c, "/cart", "success", "Item removed from cart!")
}
