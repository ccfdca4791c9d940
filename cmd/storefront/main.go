package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	applog "storefront/internal/log"
	"storefront/internal/schedule"
)

func main() {
	cfg := config.MustLoad()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			applog.Error(nil, "log.file.open", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
	applog.Info(nil, "server.starting", map[string]any{"env": cfg.Env, "port": cfg.Port, "notify": cfg.Notify.Backend})

	application, err := app.New(cfg)
	if err != nil {
		applog.Error(nil, "server.init.fail", err, nil)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.StartNotifier(ctx, true)

	var sched *schedule.Scheduler
	if cfg.Report.Enabled {
		loc, err := schedule.Location(cfg.Report.Timezone)
		if err != nil {
			applog.Error(nil, "report.schedule.tz", err, map[string]any{"tz": cfg.Report.Timezone})
			loc = time.Local
		}
		sched = schedule.New(ctx, loc)
		_, err = sched.AddDaily(cfg.Report.At, "report.daily", func(ctx context.Context, at time.Time) error {
			_, err := application.Reports.Send(ctx, at)
			return err
		})
		if err != nil {
			applog.Error(nil, "report.schedule.fail", err, map[string]any{"at": cfg.Report.At})
		} else {
			sched.Start()
			applog.Info(nil, "report.schedule", map[string]any{"at": cfg.Report.At, "tz": loc.String()})
		}
	}

	srv := application.Router()
	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			applog.Error(nil, "server.listen", err, nil)
			cancel()
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		applog.Info(nil, "server.signal", map[string]any{"signal": sig.String()})
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		applog.Error(nil, "server.shutdown", err, nil)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := application.Close(); err != nil {
		applog.Error(nil, "server.close", err, nil)
	}
	applog.Info(nil, "server.stopped", nil)
}
