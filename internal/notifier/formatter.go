package notifier

import (
	"strings"

	"SignalRelay/internal/model"
)

// Markup is the text dialect a destination renders.
type Markup int

const (
	Markdown Markup = iota
	HTML
)

const (
	infoPrefix = "ℹ️ "
	warnPrefix = "⚠️ "

	disclaimerLabel = "Risk Disclaimer:"
	disclaimerBody  = "Bobby Trend Score is for informational purposes only and not financial advice. " +
		"Trading involves substantial risk. Past performance does not guarantee future results."
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (m Markup) bold(s string) string {
	if m == HTML {
		return "<b>" + s + "</b>"
	}
	return "**" + s + "**"
}

func (m Markup) escape(s string) string {
	if m == HTML {
		return htmlEscaper.Replace(s)
	}
	return s
}

func (m Markup) field(label, value string) string {
	return m.bold(label+":") + " " + m.escape(value)
}

// FormatSignal renders a signal in fixed field order. Stop, Entry and Target
// appear only when the morning breaker entry is ON.
func FormatSignal(sig *model.Signal, m Markup) string {
	lines := []string{
		m.field("Trend", sig.Trend),
		m.field("Trend Score", sig.TrendScore.String()),
		m.field("Trend Lock Activated", sig.TrendLockActivated),
		m.field("Securities", sig.Securities),
		m.field("Morning Breaker Entry", string(sig.MorningBreakerEntry)),
	}

	if sig.BreakerOn() {
		if sig.Stop != "" {
			lines = append(lines, m.field("Stop", sig.Stop))
		}
		if sig.Entry != "" {
			lines = append(lines, m.field("Entry", sig.Entry))
		}
		if sig.Target != "" {
			lines = append(lines, m.field("Target", sig.Target))
		}
	}

	lines = append(lines, m.field("Reverse Signal Detected?", string(sig.ReverseSignalDetected)))
	return strings.Join(lines, "\n")
}

// FormatDisclaimer renders the risk disclaimer sent with every signal.
func FormatDisclaimer(m Markup) string {
	return warnPrefix + m.bold(disclaimerLabel) + " " + disclaimerBody
}

// FormatAnnouncement renders a status announcement.
func FormatAnnouncement(raw string, m Markup) string {
	return infoPrefix + m.escape(raw)
}
