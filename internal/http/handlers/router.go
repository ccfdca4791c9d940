package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Cart     *services.CartService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
}

type Options struct {
	TemplatesDir    string
	StaticDir       string
	RateLimitPerMin int
	// AvailabilityLimit caps API lookups per IP every 30 seconds.
	AvailabilityLimit int
	// LoginLimit caps login attempts per IP every 10 minutes.
	LoginLimit  int
	Secure      bool
	ReloadViews bool
	AccessLog   bool
}

func (o *Options) defaults() {
	if o.TemplatesDir == "" {
		o.TemplatesDir = "./web/templates"
	}
	if o.RateLimitPerMin <= 0 {
		o.RateLimitPerMin = 60
	}
	if o.AvailabilityLimit <= 0 {
		o.AvailabilityLimit = 15
	}
	if o.LoginLimit <= 0 {
		o.LoginLimit = 5
	}
}

// NewRouter builds the fiber app with middleware and every route.
func NewRouter(svc Services, opt Options) *fiber.App {
	opt.defaults()

	engine := html.New(opt.TemplatesDir, ".html")
	engine.AddFuncMap(ViewFuncs())
	engine.Reload(opt.ReloadViews)

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: ErrorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	if opt.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${status} ${method} ${path} ${latency} ${locals:requestid}\n",
			Output: applog.Writer(),
		}))
	}
	app.Use(helmet.New())
	app.Use(methodOverride)
	app.Use(LoadUser(svc.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        opt.RateLimitPerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/static/") || c.Path() == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.SendStatus(fiber.StatusTooManyRequests)
		},
	}))
	app.Use(csrf.New(csrf.Config{
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   opt.Secure,
		ContextKey:     "csrf",
		Extractor:      csrfToken,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))

	if opt.StaticDir != "" {
		app.Static("/static", opt.StaticDir)
	}

	authH := &AuthHandler{Auth: svc.Auth, Secure: opt.Secure}
	productH := &ProductHandler{Catalog: svc.Catalog}
	cartH := &CartHandler{Cart: svc.Cart}
	orderH := &OrderHandler{Checkout: svc.Checkout, Orders: svc.Orders}
	adminH := &AdminHandler{Catalog: svc.Catalog, Orders: svc.Orders}

	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/products") })

	// Auth routes (login throttled)
	app.Get("/login", authH.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        opt.LoginLimit,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), authH.Login)
	app.Post("/logout", authH.Logout)

	// API
	api := app.Group("/api/v1")
	api.Get("/products/:id/availability", limiter.New(limiter.Config{
		Max:        opt.AvailabilityLimit,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}), productH.Availability)

	// Shopper pages
	mustUser := RequireUser()
	app.Get("/products", mustUser, productH.List)
	app.Get("/cart", mustUser, cartH.View)
	app.Post("/cart", mustUser, cartH.Add)
	app.Patch("/cart/:id", mustUser, cartH.Update)
	app.Delete("/cart/:id", mustUser, cartH.Remove)
	app.Post("/checkout", mustUser, orderH.Place)
	app.Get("/order/confirmation", mustUser, orderH.Confirmation)
	app.Get("/orders", mustUser, orderH.History)

	// Admin
	admin := app.Group("/admin", RequireAdmin())
	admin.Get("/products", adminH.Products)
	admin.Get("/products/create", adminH.CreateForm)
	admin.Post("/products", adminH.Create)
	admin.Get("/products/:id/edit", adminH.EditForm)
	admin.Patch("/products/:id", adminH.Update)
	admin.Delete("/products/:id", adminH.Delete)
	admin.Get("/orders", adminH.OrdersPage)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return notFound(c, "Page not found")
	})
	return app
}

// csrfToken reads the token from the X-CSRF-Token header or the csrf form field.
func csrfToken(c *fiber.Ctx) (string, error) {
	if tok := c.Get("X-CSRF-Token"); tok != "" {
		return tok, nil
	}
	if tok := c.FormValue("csrf"); tok != "" {
		return tok, nil
	}
	return "", csrf.ErrTokenNotFound
}

// methodOverride lets HTML forms reach PATCH and DELETE routes through a
// hidden _method field on a POST.
func methodOverride(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		if ct := c.Get(fiber.HeaderContentType); strings.HasPrefix(ct, fiber.MIMEApplicationForm) || strings.HasPrefix(ct, fiber.MIMEMultipartForm) {
			switch m := strings.ToUpper(c.FormValue("_method")); m {
			case fiber.MethodPatch, fiber.MethodDelete, fiber.MethodPut:
				c.Method(m)
			}
		}
	}
	return c.Next()
}
