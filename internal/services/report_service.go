package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/mail"
	"storefront/internal/repos"
)

type ReportService struct {
	Orders *repos.OrderRepo
	Admins *AdminDirectory
	Mail   mail.Sender
}

func NewReportService(orders *repos.OrderRepo, admins *AdminDirectory, sender mail.Sender) *ReportService {
	return &ReportService{Orders: orders, Admins: admins, Mail: sender}
}

// DayBounds returns [midnight, next midnight) of day in day's location.
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// Build aggregates every order line sold on day, per product, ordered by name.
func (s *ReportService) Build(ctx context.Context, day time.Time) (domain.SalesReport, error) {
	start, end := DayBounds(day)
	rows, err := s.Orders.SalesBetween(ctx,
		start.In(time.Local).Format(domain.TimeLayout),
		end.In(time.Local).Format(domain.TimeLayout))
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("services.ReportService.Build: %w", err)
	}
	return aggregate(start, rows), nil
}

func aggregate(day time.Time, rows []repos.SaleRow) domain.SalesReport {
	byID := map[string]*domain.SalesLine{}
	for _, r := range rows {
		l, ok := byID[r.ProductID]
		if !ok {
			l = &domain.SalesLine{ProductID: r.ProductID, Name: r.Name, Revenue: decimal.Zero}
			byID[r.ProductID] = l
		}
		l.Quantity += r.Quantity
		l.Revenue = l.Revenue.Add(r.Price.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}

	rep := domain.SalesReport{Date: day, TotalRevenue: decimal.Zero}
	for _, l := range byID {
		rep.Lines = append(rep.Lines, *l)
		rep.TotalItems += l.Quantity
		rep.TotalRevenue = rep.TotalRevenue.Add(l.Revenue)
	}
	sort.Slice(rep.Lines, func(i, j int) bool {
		if rep.Lines[i].Name != rep.Lines[j].Name {
			return rep.Lines[i].Name < rep.Lines[j].Name
		}
		return rep.Lines[i].ProductID < rep.Lines[j].ProductID
	})
	return rep
}

// Send builds the report for day and mails it to the admins. A day without
// sales still produces an email. Repeated calls resend.
func (s *ReportService) Send(ctx context.Context, day time.Time) (domain.SalesReport, error) {
	const op = "services.ReportService.Send"
	rep, err := s.Build(ctx, day)
	if err != nil {
		return domain.SalesReport{}, err
	}
	to, err := s.Admins.Recipients(ctx)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := mail.DailyReport(to, rep)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Mail.Send(ctx, msg); err != nil {
		return rep, fmt.Errorf("%s: %w", op, err)
	}
	return rep, nil
}
