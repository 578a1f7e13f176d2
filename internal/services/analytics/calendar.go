package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domsvc "RiskPulse/internal/domain/service"
)

// HTTPEconomicCalendar fetches earnings dates, news and macro events for a symbol.
type HTTPEconomicCalendar struct{ base *HTTPServiceBase }

func NewHTTPEconomicCalendar(baseURL string, timeout time.Duration) *HTTPEconomicCalendar {
	return &HTTPEconomicCalendar{base: NewHTTPServiceBase(baseURL, timeout, nil)}
}

// Calendar returns the provider payload untouched in Data. Summary is taken
// from the payload when present, otherwise built from its sections.
func (c *HTTPEconomicCalendar) Calendar(ctx context.Context, symbol string) (models.EconomicCalendar, error) {
	if !c.base.Configured() {
		return models.EconomicCalendar{}, errs.E(errs.KindUnavailable, "calendar", "calendar url not configured", nil)
	}
	var data map[string]any
	if err := c.base.GetJSON(ctx, "/events/"+url.PathEscape(symbol), nil, &data); err != nil {
		return models.EconomicCalendar{}, errs.E(errs.KindExternalService, "calendar", "", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	summary, _ := data["summary"].(string)
	if summary == "" {
		summary = Summarize(symbol, data)
	}
	return models.EconomicCalendar{Data: data, Summary: summary}, nil
}

// Summarize renders a one-line description of a calendar payload.
func Summarize(symbol string, data map[string]any) string {
	var parts []string
	if earn, ok := data["earnings_calendar"].(map[string]any); ok {
		if d, ok := earn["next_earnings_date"].(string); ok && d != "" {
			parts = append(parts, "next earnings "+d)
		}
	}
	if news, ok := data["recent_news"].([]any); ok && len(news) > 0 {
		parts = append(parts, fmt.Sprintf("%d recent news items", len(news)))
	}
	if ev, ok := data["economic_events"].([]any); ok && len(ev) > 0 {
		parts = append(parts, fmt.Sprintf("%d upcoming economic events", len(ev)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: no scheduled events", symbol)
	}
	return fmt.Sprintf("%s: %s", symbol, strings.Join(parts, ", "))
}

var _ domsvc.EconomicCalendar = (*HTTPEconomicCalendar)(nil)
