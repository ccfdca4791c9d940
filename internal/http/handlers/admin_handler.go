package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AdminHandler struct {
	Catalog *services.CatalogService
	Orders  *services.OrderService
}

// GET /admin/products
func (h *AdminHandler) Products(c *fiber.Ctx) error {
	prods, err := h.Catalog.Latest(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.products.list.fail", err, nil)
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return render(c, "admin_products", fiber.Map{"Products": prods})
}

// GET /admin/products/create
func (h *AdminHandler) CreateForm(c *fiber.Ctx) error {
	return render(c, "admin_product_form", fiber.Map{"Action": "/admin/products", "Method": ""})
}

// productInput reads the product form. JSON bodies go through BodyParser;
// form fields are read one by one so a blank threshold means "use the default".
func productInput(c *fiber.Ctx) (services.ProductInput, bool) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var in services.ProductInput
		return in, c.BodyParser(&in) == nil
	}
	in := services.ProductInput{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Price:       json.Number(strings.TrimSpace(c.FormValue("price"))),
	}
	var ok bool
	if in.StockQuantity, ok = optInt(c.FormValue("stock_quantity")); !ok {
		return in, false
	}
	if in.LowStockThreshold, ok = optInt(c.FormValue("low_stock_threshold")); !ok {
		return in, false
	}
	return in, true
}

func optInt(s string) (*int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// POST /admin/products
func (h *AdminHandler) Create(c *fiber.Ctx) error {
	in, ok := productInput(c)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return redirectWith(c, "/admin/products/create", "error", "Stock values must be whole numbers.")
	}
	p, err := h.Catalog.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "/admin/products/create", "admin.products.create", err)
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "name": p.Name})
	return redirectWith(c, "/admin/products", "success", "Product created successfully!")
}

// GET /admin/products/:id/edit
func (h *AdminHandler) EditForm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Product not found")
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return notFound(c, "Product not found")
	}
	return render(c, "admin_product_form", fiber.Map{
		"Product": p,
		"Action":  "/admin/products/" + p.ID,
		"Method":  "PATCH",
	})
}

// PATCH /admin/products/:id
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Product not found")
	}
	edit := "/admin/products/" + id + "/edit"
	in, ok := productInput(c)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return redirectWith(c, edit, "error", "Stock values must be whole numbers.")
	}
	p, err := h.Catalog.Update(c.UserContext(), id, in)
	if err != nil {
		return fail(c, edit, "admin.products.update", err)
	}
	applog.Audit(c, "admin.products.update", map[string]any{
		"product_id": p.ID, "stock": p.StockQuantity, "threshold": p.LowStockThreshold,
	})
	return redirectWith(c, "/admin/products", "success", "Product updated successfully!")
}

// DELETE /admin/products/:id
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Product not found")
	}
	if err := h.Catalog.Delete(c.UserContext(), id); err != nil {
		return fail(c, "/admin/products", "admin.products.delete", err)
	}
	applog.Audit(c, "admin.products.delete", map[string]any{"product_id": id})
	return redirectWith(c, "/admin/products", "success", "Product deleted successfully!")
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	ords, err := h.Orders.Latest(c.UserContext(), 100)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return render(c, "admin_orders", fiber.Map{"Orders": ords})
}
