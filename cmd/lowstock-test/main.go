// Command lowstock-test forces a product into low stock and pushes one alert
// through the configured notification pipeline.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/domain"
	applog "storefront/internal/log"
)

const (
	testStock     = 5
	testThreshold = 10
)

func main() {
	var productID string
	flag.StringVar(&productID, "product", "", "product id to use (default: first product by name)")
	flag.Parse()

	cfg := config.MustLoad()
	if err := run(cfg, productID); err != nil {
		applog.Error(nil, "lowstock.test.fail", err, map[string]any{"product_id": productID})
		fmt.Fprintln(os.Stderr, "lowstock-test:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, productID string) error {
	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	// the kafka backend leaves delivery to the running server
	application.StartNotifier(ctx, false)

	p, err := forceLowStock(ctx, application, productID)
	if err != nil {
		_ = application.Close()
		return err
	}
	if err := application.Alerts.Dispatch(ctx, domain.NewLowStockAlert(p)); err != nil {
		_ = application.Close()
		return fmt.Errorf("dispatch: %w", err)
	}
	// Close waits for the queued alert to be delivered.
	if err := application.Close(); err != nil {
		return err
	}
	fmt.Printf("Low stock alert sent for %s (stock %d, threshold %d)\n", p.Name, p.StockQuantity, p.LowStockThreshold)
	return nil
}

func forceLowStock(ctx context.Context, a *app.App, productID string) (domain.Product, error) {
	var (
		p   domain.Product
		err error
	)
	if productID == "" {
		p, err = a.Products.First(ctx)
	} else {
		p, err = a.Products.Get(ctx, a.DB, productID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("no product to test with")
	}
	if err != nil {
		return domain.Product{}, err
	}
	if err := a.Products.SetStock(ctx, p.ID, testStock, testThreshold, time.Now().Format(domain.TimeLayout)); err != nil {
		return domain.Product{}, err
	}
	p.StockQuantity, p.LowStockThreshold = testStock, testThreshold
	return p, nil
}
