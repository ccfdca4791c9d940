package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"storefront/internal/http/handlers"
)

func TestAddToCartRespectsStock(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")

	resp := ta.form(t, sid, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"2"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if kind, msg := flash(t, resp); kind != "success" || msg != "Product added to cart successfully!" {
		t.Fatalf("unexpected flash %q %q", kind, msg)
	}

	over := ta.form(t, sid, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"44"}})
	kind, msg := flash(t, over)
	if kind != "error" || msg != "Insufficient stock available. Only 45 items in stock." {
		t.Fatalf("unexpected flash %q %q", kind, msg)
	}

	_, body := ta.get(t, sid, "/cart")
	if !strings.Contains(body, "Bluetooth Speaker") || !strings.Contains(body, "179.98") {
		t.Fatalf("cart page missing line or total: %s", body)
	}
}

func TestAddToCartRejectsBadInput(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")

	cases := []struct {
		name string
		vals url.Values
		want string
	}{
		{"zero qty", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"0"}}, "Quantity"},
		{"unknown product", url.Values{"product_id": {"nope"}, "quantity": {"1"}}, "Product id"},
		{"bad id", url.Values{"product_id": {"<script>"}, "quantity": {"1"}}, "Please choose a product."},
		{"non numeric", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"abc"}}, "whole number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp *http.Response
			logs := captureLogs(t, func() {
				resp = ta.form(t, sid, "/cart", tc.vals)
			})
			kind, msg := flash(t, resp)
			if kind != "error" || !strings.Contains(msg, tc.want) {
				t.Fatalf("unexpected flash %q %q", kind, msg)
			}
			if _, ok := findLog(logs, "validation.fail"); !ok {
				t.Fatal("validation.fail not logged")
			}
		})
	}
}

func TestCartQuantityOutOfRangeIsRejected(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")

	for _, q := range []string{"1000", "-1", "1.5", ""} {
		var resp *http.Response
		logs := captureLogs(t, func() {
			resp = ta.form(t, sid, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {q}})
		})
		if kind, msg := flash(t, resp); kind != "error" || msg != "Quantity must be a whole number between 1 and 999." {
			t.Fatalf("quantity %q: unexpected flash %q %q", q, kind, msg)
		}
		e, ok := findLog(logs, "validation.fail")
		if !ok || e.Fields["field"] != "quantity" {
			t.Fatalf("quantity %q: validation.fail for quantity not logged: %+v", q, logs)
		}
	}
	var n int
	_ = ta.db.Get(&n, `SELECT COUNT(*) FROM cart_items WHERE user_id = ?`, "u-test")
	if n != 0 {
		t.Fatalf("cart has %d items after rejected adds", n)
	}

	ta.form(t, sid, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"2"}})
	var itemID string
	if err := ta.db.Get(&itemID, `SELECT id FROM cart_items WHERE user_id = ?`, "u-test"); err != nil {
		t.Fatalf("find cart item: %v", err)
	}
	var resp *http.Response
	logs := captureLogs(t, func() {
		resp = ta.form(t, sid, "/cart/"+itemID, url.Values{"_method": {"PATCH"}, "quantity": {"1000"}})
	})
	if kind, _ := flash(t, resp); kind != "error" {
		t.Fatalf("update to 1000 accepted")
	}
	if e, ok := findLog(logs, "validation.fail"); !ok || e.Fields["field"] != "quantity" {
		t.Fatalf("validation.fail for quantity not logged on update")
	}
	var qty int
	_ = ta.db.Get(&qty, `SELECT quantity FROM cart_items WHERE id = ?`, itemID)
	if qty != 2 {
		t.Fatalf("quantity = %d, want 2", qty)
	}
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")
	ta.form(t, sid, "/cart", url.Values{"product_id": {"desk-lamp"}, "quantity": {"1"}})

	var itemID string
	if err := ta.db.Get(&itemID, `SELECT id FROM cart_items WHERE user_id = ?`, "u-test"); err != nil {
		t.Fatalf("find cart item: %v", err)
	}

	up := ta.form(t, sid, "/cart/"+itemID, url.Values{"_method": {"PATCH"}, "quantity": {"3"}})
	if kind, _ := flash(t, up); kind != "success" {
		t.Fatalf("update failed: %d", up.StatusCode)
	}
	var qty int
	_ = ta.db.Get(&qty, `SELECT quantity FROM cart_items WHERE id = ?`, itemID)
	if qty != 3 {
		t.Fatalf("quantity = %d, want 3", qty)
	}

	tooMany := ta.form(t, sid, "/cart/"+itemID, url.Values{"_method": {"PATCH"}, "quantity": {"29"}})
	if _, msg := flash(t, tooMany); msg != "Insufficient stock available. Only 28 items in stock." {
		t.Fatalf("unexpected flash %q", msg)
	}

	// another shopper cannot touch the line
	other := ta.session(t, "u-admin")
	denied := ta.form(t, other, "/cart/"+itemID, url.Values{"_method": {"DELETE"}})
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign cart item, got %d", denied.StatusCode)
	}

	rm := ta.form(t, sid, "/cart/"+itemID, url.Values{"_method": {"DELETE"}})
	if kind, msg := flash(t, rm); kind != "success" || msg != "Item removed from cart!" {
		t.Fatalf("unexpected flash %q %q", kind, msg)
	}
	var n int
	_ = ta.db.Get(&n, `SELECT COUNT(*) FROM cart_items WHERE user_id = ?`, "u-test")
	if n != 0 {
		t.Fatalf("cart still has %d items", n)
	}
}

func TestCheckoutFlow(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")

	empty := ta.form(t, sid, "/checkout", nil)
	if _, msg := flash(t, empty); msg != "Your cart is empty!" {
		t.Fatalf("unexpected flash for empty cart %q", msg)
	}

	ta.form(t, sid, "/cart", url.Values{"product_id": {"bluetooth-speaker"}, "quantity": {"31"}})
	ta.form(t, sid, "/cart", url.Values{"product_id": {"desk-lamp"}, "quantity": {"2"}})

	var placed *http.Response
	logs := captureLogs(t, func() {
		placed = ta.form(t, sid, "/checkout", nil)
	})
	if placed.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", placed.StatusCode)
	}
	loc := placed.Header.Get("Location")
	if !strings.HasPrefix(loc, "/order/confirmation?id=") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	e, ok := findLog(logs, "order.place")
	if !ok {
		t.Fatal("order.place not audited")
	}
	// 31 x 89.99 + 2 x 45.99
	if e.Fields["total"] != "2881.67" {
		t.Fatalf("total = %v", e.Fields["total"])
	}

	resp, body := ta.get(t, sid, loc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirmation: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "2881.67") || !strings.Contains(body, "Desk Lamp") {
		t.Fatalf("confirmation missing order details: %s", body)
	}

	var stock int
	_ = ta.db.Get(&stock, `SELECT stock_quantity FROM products WHERE id = 'bluetooth-speaker'`)
	if stock != 14 {
		t.Fatalf("stock = %d, want 14", stock)
	}
	if len(ta.alerts.alerts) != 1 || ta.alerts.alerts[0].ProductID != "bluetooth-speaker" {
		t.Fatalf("expected one low-stock alert, got %+v", ta.alerts.alerts)
	}

	_, hist := ta.get(t, sid, "/orders")
	if !strings.Contains(hist, "2881.67") {
		t.Fatal("order history missing the new order")
	}
	_, cart := ta.get(t, sid, "/cart")
	if !strings.Contains(cart, "Your cart is empty") {
		t.Fatal("cart not cleared after checkout")
	}
}

func TestCheckoutInsufficientStockChangesNothing(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")
	ta.form(t, sid, "/cart", url.Values{"product_id": {"desk-lamp"}, "quantity": {"1"}})
	ta.form(t, sid, "/cart", url.Values{"product_id": {"gaming-controller"}, "quantity": {"3"}})
	if _, err := ta.db.Exec(`UPDATE products SET stock_quantity = 1 WHERE id = 'gaming-controller'`); err != nil {
		t.Fatal(err)
	}

	resp := ta.form(t, sid, "/checkout", nil)
	if resp.Header.Get("Location") != "/cart" {
		t.Fatalf("expected redirect back to cart, got %q", resp.Header.Get("Location"))
	}
	if _, msg := flash(t, resp); msg != "Insufficient stock for Gaming Controller. Only 1 items available." {
		t.Fatalf("unexpected flash %q", msg)
	}
	var orders, lamp int
	_ = ta.db.Get(&orders, `SELECT COUNT(*) FROM orders`)
	_ = ta.db.Get(&lamp, `SELECT stock_quantity FROM products WHERE id = 'desk-lamp'`)
	if orders != 0 || lamp != 28 {
		t.Fatalf("partial checkout persisted: orders=%d lamp=%d", orders, lamp)
	}
}

func TestMissingCSRFIsRejected(t *testing.T) {
	ta := newTestApp(t, handlers.Options{})
	sid := ta.session(t, "u-test")
	req := newFormRequest("/cart", url.Values{"product_id": {"desk-lamp"}, "quantity": {"1"}})
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	var resp *http.Response
	logs := captureLogs(t, func() {
		var err error
		if resp, err = ta.app.Test(req); err != nil {
			t.Fatal(err)
		}
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if _, ok := findLog(logs, "csrf.fail"); !ok {
		t.Fatal("csrf.fail not logged")
	}
}
