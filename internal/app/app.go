// Package app wires configuration, storage, services and the alert pipeline
// into one value shared by the server and the command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/notify"
	"storefront/internal/repos"
	"storefront/internal/services"
)

const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
)

type App struct {
	Cfg config.Config
	DB  *sqlx.DB

	Users    *repos.UserRepo
	Products *repos.ProductRepo
	Carts    *repos.CartRepo
	Orders   *repos.OrderRepo

	Auth      *services.AuthService
	Catalog   *services.CatalogService
	Cart      *services.CartService
	Checkout  *services.CheckoutService
	OrderList *services.OrderService
	Admins    *services.AdminDirectory
	Notifier  *services.LowStockNotifier
	Reports   *services.ReportService

	Mail   mail.Sender
	Alerts notify.Dispatcher

	queue    *notify.Queue
	kafkaOut *notify.KafkaDispatcher
	consumer *notify.KafkaConsumer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New opens the database, seeds demo data when configured and builds every
// service. Background workers are not started; see StartNotifier.
func New(cfg config.Config) (*App, error) {
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("app: open db: %w", err)
	}
	if cfg.SeedDemo {
		if err := repos.Seed(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: seed: %w", err)
		}
	}

	a := &App{
		Cfg:      cfg,
		DB:       db,
		Users:    repos.NewUserRepo(db),
		Products: repos.NewProductRepo(db),
		Carts:    repos.NewCartRepo(db),
		Orders:   repos.NewOrderRepo(db),
		Mail:     mail.New(cfg.Mail),
	}
	a.Admins = services.NewAdminDirectory(a.Users, cfg.AdminEmails)
	a.Notifier = services.NewLowStockNotifier(a.Admins, a.Mail)
	a.Reports = services.NewReportService(a.Orders, a.Admins, a.Mail)

	switch strings.ToLower(cfg.Notify.Backend) {
	case BackendKafka:
		a.kafkaOut = notify.NewKafkaDispatcher(notify.NewKafkaWriter(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic))
		a.Alerts = a.kafkaOut
	case BackendMemory, "":
		a.queue = notify.NewQueue(a.Notifier.HandleLowStock, cfg.Notify.Workers, cfg.Notify.Buffer)
		a.Alerts = a.queue
	default:
		_ = db.Close()
		return nil, fmt.Errorf("app: unknown notify backend %q", cfg.Notify.Backend)
	}

	a.Auth = services.NewAuthService(a.Users)
	a.Catalog = services.NewCatalogService(a.Products, a.Carts, a.Orders)
	a.Cart = services.NewCartService(a.Carts, a.Products)
	a.Checkout = services.NewCheckoutService(a.Carts, a.Products, a.Orders, a.Alerts)
	a.OrderList = services.NewOrderService(a.Orders)
	return a, nil
}

// StartNotifier launches alert delivery. With the kafka backend, consume
// controls whether this process also reads the topic and sends the emails.
func (a *App) StartNotifier(ctx context.Context, consume bool) {
	ctx, a.cancel = context.WithCancel(ctx)
	if a.queue != nil {
		a.queue.Start(ctx)
		return
	}
	if !consume {
		return
	}
	n := a.Cfg.Notify
	a.consumer = notify.NewKafkaConsumer(notify.NewKafkaReader(n.KafkaBrokers, n.KafkaTopic, n.KafkaGroup), a.Notifier.HandleLowStock)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Run(ctx); err != nil {
			applog.Error(nil, "notify.kafka.consumer", err, nil)
		}
	}()
	applog.Info(nil, "notify.kafka.consumer.start", map[string]any{"topic": n.KafkaTopic, "group": n.KafkaGroup})
}

// Router builds the HTTP surface over this app's services.
func (a *App) Router() *fiber.App {
	return handlers.NewRouter(handlers.Services{
		Auth:     a.Auth,
		Catalog:  a.Catalog,
		Cart:     a.Cart,
		Checkout: a.Checkout,
		Orders:   a.OrderList,
	}, handlers.Options{
		TemplatesDir:    a.Cfg.TemplatesDir,
		StaticDir:       a.Cfg.StaticDir,
		RateLimitPerMin: a.Cfg.RateLimitPerMin,
		Secure:          a.Cfg.Env == "production",
		ReloadViews:     a.Cfg.Env == "development",
		AccessLog:       true,
	})
}

// Close drains queued alerts, flushes the kafka writer, stops the consumer
// and closes the database, in that order.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		a.queue.Close()
	}
	if a.kafkaOut != nil {
		if err := a.kafkaOut.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka writer: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka reader: %w", err))
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db: %w", err))
	}
	return errors.Join(errs...)
}
