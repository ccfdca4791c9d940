package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// List renders the catalog, optionally filtered by ?q=.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	raw := c.Query("q")
	q, ok := validate.Q(raw)
	if raw != "" && !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "q"})
		q = ""
	}
	prods, err := h.Catalog.List(c.UserContext(), q)
	if err != nil {
		log.Error(c, "products.list.fail", err, nil)
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	rows := make([]services.CatalogProduct, 0, len(prods))
	for _, p := range prods {
		rows = append(rows, services.CatalogProduct{Product: p, Availability: services.AvailabilityOf(p)})
	}
	return render(c, "products", fiber.Map{"Products": rows, "Q": q})
}

// Availability answers GET /api/v1/products/:id/availability.
func (h *ProductHandler) Availability(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	a, err := h.Catalog.Availability(c.UserContext(), id)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		log.Error(c, "availability.fail", err, map[string]any{"product_id": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not check availability"})
	}
	return c.JSON(a)
}
