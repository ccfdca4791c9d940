package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AuthHandler struct {
	Auth   *services.AuthService
	Secure bool
}

func (h *AuthHandler) sid(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.Secure,
		})
	}
	return sid
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return c.Redirect("/products")
	}
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx, email, reason string) error {
	log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": reason})
	return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
		"Err":       "Invalid email or password",
		"Email":     email,
		"CSRFToken": c.Cookies("csrf_"),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := h.sid(c)
	email, ok := validate.Email(c.FormValue("email"))
	if !ok {
		return h.loginFailed(c, c.FormValue("email"), "bad_format")
	}
	pass := c.FormValue("password")
	if !validate.Password(pass) {
		return h.loginFailed(c, email, "bad_password_format")
	}
	if _, err := h.Auth.Login(c.UserContext(), sid, email, pass); err != nil {
		return h.loginFailed(c, email, "bad_credentials")
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.Redirect("/products")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := h.sid(c)
	_ = h.Auth.Logout(c.UserContext(), sid)
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.Secure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/login", fiber.StatusSeeOther)
}
