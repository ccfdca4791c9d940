package services

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/mail"
	"storefront/internal/repos"
)

// AdminDirectory resolves who receives operational email. A configured list
// wins; otherwise every ADMIN user is a recipient.
type AdminDirectory struct {
	Users      *repos.UserRepo
	Configured []string
}

func NewAdminDirectory(users *repos.UserRepo, configured []string) *AdminDirectory {
	var list []string
	for _, e := range configured {
		if e = strings.TrimSpace(e); e != "" {
			list = append(list, e)
		}
	}
	return &AdminDirectory{Users: users, Configured: list}
}

func (d *AdminDirectory) Recipients(ctx context.Context) ([]string, error) {
	if len(d.Configured) > 0 {
		return d.Configured, nil
	}
	admins, err := d.Users.Admins(ctx)
	if err != nil {
		return nil, fmt.Errorf("services.AdminDirectory.Recipients: %w", err)
	}
	if len(admins) == 0 {
		return nil, ErrNoAdminRecipient
	}
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		out = append(out, a.Email)
	}
	return out, nil
}

// LowStockNotifier emails admins about a product that fell to its threshold.
type LowStockNotifier struct {
	Admins *AdminDirectory
	Mail   mail.Sender
}

func NewLowStockNotifier(admins *AdminDirectory, sender mail.Sender) *LowStockNotifier {
	return &LowStockNotifier{Admins: admins, Mail: sender}
}

// HandleLowStock matches notify.Handler.
func (n *LowStockNotifier) HandleLowStock(ctx context.Context, a domain.LowStockAlert) error {
	const op = "services.LowStockNotifier.HandleLowStock"
	to, err := n.Admins.Recipients(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg, err := mail.LowStock(to, a)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := n.Mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
