package handlers

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const flashCookie = "flash"

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind string // success | error
	Msg  string
}

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	// Inject user if present
	if u := c.Locals("user"); u != nil {
		data["User"] = u
	}
	tok, _ := c.Locals("csrf").(string)
	if tok == "" {
		tok = c.Cookies("csrf_")
	}
	if tok != "" {
		data["CSRFToken"] = tok
	}
	if _, set := data["Flash"]; !set {
		if f, ok := takeFlash(c); ok {
			data["Flash"] = f
		}
	}
	return c.Render(tmpl, data)
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": msg})
}

func setFlash(c *fiber.Ctx, kind, msg string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(kind + "|" + msg)),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func takeFlash(c *fiber.Ctx) (Flash, bool) {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return Flash{}, false
	}
	c.Cookie(&fiber.Cookie{Name: flashCookie, Value: "", Path: "/", Expires: time.Now().Add(-time.Hour)})
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Flash{}, false
	}
	kind, msg, ok := strings.Cut(string(b), "|")
	if !ok || (kind != "success" && kind != "error") {
		return Flash{}, false
	}
	return Flash{Kind: kind, Msg: msg}, true
}

// redirectWith sets a flash message and answers 303 See Other.
func redirectWith(c *fiber.Ctx, to, kind, msg string) error {
	setFlash(c, kind, msg)
	return c.Redirect(to, fiber.StatusSeeOther)
}

// back returns the local path of the Referer, or fallback.
func back(c *fiber.Ctx, fallback string) string {
	ref := c.Get(fiber.HeaderReferer)
	if ref == "" {
		return fallback
	}
	if i := strings.Index(ref, "://"); i >= 0 {
		rest := ref[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		if host != c.Hostname() {
			return fallback
		}
		ref = "/" + path
	}
	if !strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "//") {
		return fallback
	}
	return ref
}

// ViewFuncs are the helpers available to every template.
func ViewFuncs() map[string]any {
	return map[string]any{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"mul": func(d decimal.Decimal, n int) string {
			return d.Mul(decimal.NewFromInt(int64(n))).StringFixed(2)
		},
	}
}
