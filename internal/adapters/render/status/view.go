package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dkoval/poolctl/internal/application"
	"github.com/dkoval/poolctl/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

// Render formats the pool status for the terminal.
func Render(status application.PoolStatus, opts RenderOptions) string {
	return renderView(status, opts, newStyles())
}

func renderView(status application.PoolStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Account Pool"),
		s.header.Render(summaryLine(status)),
	}

	if status.ActiveSession != nil {
		lines = append(lines, s.detail.Render(sessionLine(status, opts.Now)))
	}
	if status.NextIdentity != "" {
		lines = append(lines, s.detail.Render(fmt.Sprintf("next: %s", status.NextIdentity)))
	}

	if len(status.Accounts) == 0 {
		lines = append(lines, s.empty.Render("No accounts in pool."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	accounts := make([]domain.Account, len(status.Accounts))
	copy(accounts, status.Accounts)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Priority != accounts[j].Priority {
			return accounts[i].Priority < accounts[j].Priority
		}
		return strings.ToLower(accounts[i].Identity) < strings.ToLower(accounts[j].Identity)
	})

	for _, account := range accounts {
		lines = append(lines, s.section.Render(renderAccount(account, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func summaryLine(status application.PoolStatus) string {
	parts := []string{fmt.Sprintf("accounts: %d", len(status.Accounts))}

	order := []domain.AccountStatus{
		domain.StatusActive,
		domain.StatusInUse,
		domain.StatusCooldown,
		domain.StatusQuotaExhausted,
		domain.StatusSuspended,
		domain.StatusError,
	}
	for _, st := range order {
		if count := status.Counts[st]; count > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st, count))
		}
	}
	parts = append(parts, fmt.Sprintf("remaining quota: %s", formatDuration(status.RemainingQuota)))

	return strings.Join(parts, " · ")
}

func sessionLine(status application.PoolStatus, now time.Time) string {
	session := status.ActiveSession
	identity := status.ActiveIdentity
	if identity == "" {
		identity = string(session.AccountID)
	}
	if now.IsZero() {
		return fmt.Sprintf("session: %s on %s", session.ID, identity)
	}

	return fmt.Sprintf("session: %s on %s (%s elapsed)", session.ID, identity, formatDuration(session.Elapsed(now)))
}

func renderAccount(account domain.Account, opts RenderOptions, s styles) string {
	statusStyle := lipgloss.NewStyle().Foreground(statusColor(string(account.Status)))
	head := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.account.Render(fmt.Sprintf("%s (p%d)", account.Identity, account.Priority)),
		" ",
		statusStyle.Render(string(account.Status)),
	)

	percent := account.QuotaUsedPercent()
	quota := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.quotaKey.Render("quota:"),
		" ",
		renderProgressBar(percent, 24, s),
		" ",
		s.detail.Render(fmt.Sprintf("%s / %s", formatDuration(account.DailyQuotaUsed), formatDuration(account.DailyQuotaLimit))),
	)

	parts := []string{head, quota}
	if account.Status == domain.StatusCooldown && account.CooldownUntil != nil && !opts.Now.IsZero() {
		parts = append(parts, s.detail.Render(fmt.Sprintf("cooldown ends in %s", formatDuration(account.CooldownUntil.Sub(opts.Now)))))
	}
	if account.LastError != "" {
		parts = append(parts, s.warning.Render(fmt.Sprintf("last error: %s", account.LastError)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}

	return s.barBracket.Render("[") +
		s.barFill.Render(strings.Repeat("=", filled)) +
		s.barEmpty.Render(strings.Repeat("-", width-filled)) +
		s.barBracket.Render("]")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	return d.Round(time.Second).String()
}
