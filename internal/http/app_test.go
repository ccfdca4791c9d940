package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/repos"
	"storefront/internal/services"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []domain.LowStockAlert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a domain.LowStockAlert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return nil
}

type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	users  *repos.UserRepo
	prods  *repos.ProductRepo
	alerts *recordingDispatcher
}

// newTestApp wires the real router over a seeded in-memory database.
func newTestApp(t *testing.T, opt handlers.Options) *testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := repos.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	users := repos.NewUserRepo(db)
	prods := repos.NewProductRepo(db)
	carts := repos.NewCartRepo(db)
	orders := repos.NewOrderRepo(db)
	alerts := &recordingDispatcher{}

	if opt.TemplatesDir == "" {
		opt.TemplatesDir = "../../web/templates"
	}
	if opt.RateLimitPerMin == 0 {
		opt.RateLimitPerMin = 1000
	}
	if opt.LoginLimit == 0 {
		opt.LoginLimit = 100
	}
	if opt.AvailabilityLimit == 0 {
		opt.AvailabilityLimit = 100
	}
	app := handlers.NewRouter(handlers.Services{
		Auth:     services.NewAuthService(users),
		Catalog:  services.NewCatalogService(prods, carts, orders),
		Cart:     services.NewCartService(carts, prods),
		Checkout: services.NewCheckoutService(carts, prods, orders, alerts),
		Orders:   services.NewOrderService(orders),
	}, opt)
	return &testApp{app: app, db: db, users: users, prods: prods, alerts: alerts}
}

// session binds a fresh session id to userID and returns it.
func (ta *testApp) session(t *testing.T, userID string) string {
	t.Helper()
	sid := "sid-" + userID
	if err := ta.users.BindSession(context.Background(), sid, userID); err != nil {
		t.Fatalf("bind session: %v", err)
	}
	return sid
}

// csrf fetches a token the way a browser would, from the login page cookie.
func (ta *testApp) csrf(t *testing.T) string {
	t.Helper()
	resp, err := ta.app.Test(httptest.NewRequest("GET", "/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	tok := cookie(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

// form sends a urlencoded POST as the given session, with a valid csrf token.
func (ta *testApp) form(t *testing.T, sid, path string, vals url.Values) *http.Response {
	t.Helper()
	tok := ta.csrf(t)
	if vals == nil {
		vals = url.Values{}
	}
	vals.Set("csrf", tok)
	req := newFormRequest(path, vals)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func newFormRequest(path string, vals url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (ta *testApp) get(t *testing.T, sid, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// flash decodes the one-shot message set on a redirect.
func flash(t *testing.T, resp *http.Response) (kind, msg string) {
	t.Helper()
	raw := cookie(resp, "flash")
	if raw == "" {
		return "", ""
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	kind, msg, _ = strings.Cut(string(b), "|")
	return kind, msg
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Status int            `json:"status"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

// captureLogs runs fn with the event log redirected and returns the parsed lines.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.SetOutput(buf)
	defer applog.SetOutput(io.Discard)

	fn()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
