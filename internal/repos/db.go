package repos

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenDB opens the sqlite database and brings the schema up to date.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	// Immediate transactions take the write lock up front, so a checkout
	// waits on busy_timeout instead of failing on a read-to-write upgrade.
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func migrateUp(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	drv, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return err
	}
	// m.Close would close db as well; only the source is released.
	defer func() { _ = src.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Seed inserts the demo users and, on an empty catalog, the demo products.
// Safe to run on every start.
func Seed(db *sqlx.DB) error {
	if err := seedUsers(db); err != nil {
		return err
	}
	return seedProducts(db)
}

// seedUsers ensures one ADMIN and one USER exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) (u, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			return u{}, err
		}
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}, nil
	}

	var users []u
	for _, x := range [][4]string{
		{"u-admin", "admin@example.com", "Admin User", domain.RoleAdmin},
		{"u-test", "test@example.com", "Test User", domain.RoleUser},
	} {
		usr, err := mk(x[0], x[1], x[2], x[3], "Passw0rd!")
		if err != nil {
			return err
		}
		users = append(users, usr)
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type seedProduct struct {
	id, name, description, price string
	stock, threshold             int
}

var demoProducts = []seedProduct{
	{"laptop", "Laptop", "High-performance laptop with 16GB RAM and 512GB SSD", "1299.99", 25, 10},
	{"wireless-mouse", "Wireless Mouse", "Ergonomic wireless mouse with precision tracking", "29.99", 50, 15},
	{"mechanical-keyboard", "Mechanical Keyboard", "RGB mechanical keyboard with custom switches", "149.99", 8, 10},
	{"monitor-27", "Monitor 27\"", "4K UHD Monitor with HDR support", "499.99", 15, 5},
	{"usb-c-hub", "USB-C Hub", "7-in-1 USB-C Hub with HDMI and Ethernet", "49.99", 100, 20},
	{"webcam-hd", "Webcam HD", "1080p HD Webcam with built-in microphone", "79.99", 5, 10},
	{"headset", "Headset", "Noise-cancelling wireless headset", "199.99", 30, 10},
	{"external-ssd-1tb", "External SSD 1TB", "Portable SSD with USB 3.2 Gen 2", "129.99", 40, 15},
	{"smartphone", "Smartphone", "Latest smartphone with 128GB storage", "799.99", 20, 8},
	{"tablet-10", "Tablet 10\"", "10-inch tablet with stylus support", "449.99", 12, 10},
	{"smartwatch", "Smartwatch", "Fitness tracking smartwatch with GPS", "249.99", 35, 10},
	{"wireless-charger", "Wireless Charger", "Fast wireless charging pad", "39.99", 60, 20},
	{"bluetooth-speaker", "Bluetooth Speaker", "Portable Bluetooth speaker with 12-hour battery", "89.99", 45, 15},
	{"gaming-controller", "Gaming Controller", "Wireless gaming controller with haptic feedback", "69.99", 3, 10},
	{"desk-lamp", "Desk Lamp", "LED desk lamp with adjustable brightness", "45.99", 28, 10},
	{"cable-box", "Cable Management Box", "Organize your cables with this sleek box", "19.99", 75, 25},
	{"phone-stand", "Phone Stand", "Adjustable phone stand for desk", "14.99", 90, 30},
	{"laptop-stand", "Laptop Stand", "Aluminum laptop stand with cooling", "54.99", 22, 10},
	{"graphics-card", "Graphics Card", "High-end graphics card for gaming", "899.99", 6, 10},
	{"ram-16gb", "RAM 16GB Kit", "DDR4 16GB (2x8GB) RAM Kit 3200MHz", "79.99", 33, 10},
}

func seedProducts(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Info(nil, "seed.products", map[string]any{"count": len(demoProducts)})

	now := time.Now().Format(domain.TimeLayout)
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, p := range demoProducts {
		if _, err := tx.Exec(`
			INSERT INTO products(id,name,description,price,stock_quantity,low_stock_threshold,created_at)
			VALUES(?,?,?,?,?,?,?)
		`, p.id, p.name, p.description, p.price, p.stock, p.threshold, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
