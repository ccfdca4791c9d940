// Command report builds the daily sales report for one day and mails it to
// the admins, the same way the scheduled job does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"storefront/internal/app"
	"storefront/internal/config"
	applog "storefront/internal/log"
	"storefront/internal/schedule"
)

func main() {
	var date string
	flag.StringVar(&date, "date", "", "day to report on, YYYY-MM-DD (default: today)")
	flag.Parse()

	cfg := config.MustLoad()
	if err := run(cfg, date); err != nil {
		applog.Error(nil, "report.manual.fail", err, map[string]any{"date": date})
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, date string) error {
	loc, err := schedule.Location(cfg.Report.Timezone)
	if err != nil {
		return err
	}
	day, err := parseDay(date, loc, time.Now())
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	rep, err := application.Reports.Send(ctx, day)
	if err != nil {
		return err
	}
	applog.Info(nil, "report.manual.sent", map[string]any{
		"date":    rep.Date.Format(time.DateOnly),
		"items":   rep.TotalItems,
		"revenue": rep.TotalRevenue.StringFixed(2),
	})
	fmt.Printf("Daily sales report for %s sent: %d items, $%s\n",
		rep.Date.Format(time.DateOnly), rep.TotalItems, rep.TotalRevenue.StringFixed(2))
	return nil
}

// parseDay reads YYYY-MM-DD in loc; empty means the current day.
func parseDay(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		return now.In(loc), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad -date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
