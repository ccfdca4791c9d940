package handlers_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"storefront/internal/http/handlers"
)

func TestAdminGuardRequiresAdmin(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})

	anon, _ := ta.get(t, "", "/admin/products")
	if anon.StatusCode != http.StatusFound {
		t.Fatalf("anonymous: expected redirect, got %d", anon.StatusCode)
	}

	user := ta.session(t, "u-test")
	var resp *http.Response
	var body string
	logs := captureLogs(t, func() {
		resp, body = ta.get(t, user, "/admin/products")
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Access denied") {
		t.Fatalf("denial page missing message: %s", body)
	}
	e, ok := findLog(logs, "access.denied.admin")
	if !ok {
		t.Fatal("access.denied.admin not logged")
	}
	if e.Fields["user_id"] != "u-test" {
		t.Fatalf("denial logged for wrong user: %v", e.Fields["user_id"])
	}

	admin := ta.session(t, "u-admin")
	ok200, body := ta.get(t, admin, "/admin/products")
	if ok200.StatusCode != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", ok200.StatusCode)
	}
	if !strings.Contains(body, "Bluetooth Speaker") {
		t.Fatal("admin product list missing seeded products")
	}
}

func TestAdminMutationsRejectShoppers(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	user := ta.session(t, "u-test")
	resp := ta.form(t, user, "/admin/products/bluetooth-speaker", url.Values{"_method": {"DELETE"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if _, err := ta.prods.First(context.Background()); err != nil {
		t.Fatalf("product gone after forbidden delete: %v", err)
	}
}

func TestOrderConfirmationIsOwnerOnly(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	owner := ta.session(t, "u-admin")
	ta.form(t, owner, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"1"}})
	placed := ta.form(t, owner, "/checkout", nil)
	loc := placed.Header.Get("Location")
	if !strings.HasPrefix(loc, "/order/confirmation?id=") {
		t.Fatalf("unexpected checkout redirect %q", loc)
	}

	other := ta.session(t, "u-test")
	var resp *http.Response
	logs := captureLogs(t, func() {
		resp, _ = ta.get(t, other, loc)
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", resp.StatusCode)
	}
	if _, ok := findLog(logs, "access.denied.order"); !ok {
		t.Fatal("access.denied.order not logged")
	}
}
