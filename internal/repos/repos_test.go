package repos_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSeedIsIdempotentAndHashesPasswords(t *testing.T) {
	db := memdb(t)
	require.NoError(t, repos.Seed(db))
	require.NoError(t, repos.Seed(db))

	var users int
	require.NoError(t, db.Get(&users, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 2, users)

	var products int
	require.NoError(t, db.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.Equal(t, 20, products)

	var hashes []string
	require.NoError(t, db.Select(&hashes, `SELECT password_hash FROM users`))
	for _, h := range hashes {
		assert.NotContains(t, h, "Passw0rd!")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")))
	}
}

func TestMigrationsRunOnceOnReopen(t *testing.T) {
	dsn := t.TempDir() + "/shop.db"
	db, err := repos.OpenDB(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = repos.OpenDB(dsn)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.Get(&version, `SELECT version FROM schema_migrations`))
	assert.Equal(t, 1, version)
}

func TestProductRepo_DecrementStockNeverNegative(t *testing.T) {
	db := memdb(t)
	ctx := context.Background()
	prods := repos.NewProductRepo(db)

	require.NoError(t, prods.Create(ctx, domain.Product{
		ID: "p1", Name: "Widget", Price: decimal.RequireFromString("10.00"),
		StockQuantity: 3, LowStockThreshold: 1, CreatedAt: "2026-01-01 10:00:00",
	}))

	ok, err := prods.DecrementStock(ctx, db, "p1", 2, "2026-01-01 10:01:00")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = prods.DecrementStock(ctx, db, "p1", 2, "2026-01-01 10:02:00")
	require.NoError(t, err)
	assert.False(t, ok, "second decrement must be refused")

	qty, err := prods.Stock(ctx, db, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, qty)

	p, err := prods.Get(ctx, db, "p1")
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10")))
}

func TestProductRepo_GetMissing(t *testing.T) {
	db := memdb(t)
	_, err := repos.NewProductRepo(db).Get(context.Background(), db, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProductRepo_ListFilter(t *testing.T) {
	db := memdb(t)
	require.NoError(t, repos.Seed(db))
	prods := repos.NewProductRepo(db)

	all, err := prods.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 20)
	assert.Equal(t, "Bluetooth Speaker", all[0].Name)

	hits, err := prods.List(context.Background(), "WIRELESS")
	require.NoError(t, err)
	for _, p := range hits {
		assert.Contains(t, p.Name+" "+p.Description, "ireless")
	}
	assert.NotEmpty(t, hits)
}

func TestOrderRepo_SalesBetween(t *testing.T) {
	db := memdb(t)
	require.NoError(t, repos.Seed(db))
	ctx := context.Background()
	orders := repos.NewOrderRepo(db)

	require.NoError(t, orders.Create(ctx, db, domain.Order{
		ID: "o1", UserID: "u-test", TotalAmount: decimal.RequireFromString("59.98"),
		Status: domain.OrderStatusCompleted, CreatedAt: "2026-03-04 23:59:59",
	}))
	for _, it := range []domain.OrderItem{
		{ID: "i1", OrderID: "o1", ProductID: "wireless-mouse", Quantity: 1, Price: decimal.RequireFromString("29.99"), CreatedAt: "2026-03-04 23:59:59"},
		{ID: "i2", OrderID: "o1", ProductID: "wireless-mouse", Quantity: 1, Price: decimal.RequireFromString("29.99"), CreatedAt: "2026-03-05 00:00:00"},
	} {
		require.NoError(t, orders.InsertItem(ctx, db, it))
	}

	rows, err := orders.SalesBetween(ctx, "2026-03-04 00:00:00", "2026-03-05 00:00:00")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Wireless Mouse", rows[0].Name)

	n, err := orders.CountItemsForProduct(ctx, db, "wireless-mouse")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUserRepo_AdminsAndSessions(t *testing.T) {
	db := memdb(t)
	require.NoError(t, repos.Seed(db))
	ctx := context.Background()
	users := repos.NewUserRepo(db)

	admins, err := users.Admins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)

	require.NoError(t, users.BindSession(ctx, "sid-1", "u-test"))
	u, err := users.SessionUser(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", u.Email)

	require.NoError(t, users.UnbindSession(ctx, "sid-1"))
	_, err = users.SessionUser(ctx, "sid-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
