package cronschedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field cron expressions (minute hour dom month dow).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateExpression confirms a cron expression parses and can compute a
// next run time.
func ValidateExpression(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("cronschedule: expression cannot be empty")
	}
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("cronschedule: expression must have exactly 5 fields")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("cronschedule: invalid expression %q: %w", expr, err)
	}
	if sched.Next(time.Now().UTC()).IsZero() {
		return fmt.Errorf("cronschedule: could not compute next run time for %q", expr)
	}
	return nil
}

// NextRunTime computes the next execution time after base, optionally
// interpreting the expression in the given IANA timezone before
// converting the result back to UTC. An empty tz means UTC.
func NextRunTime(expr string, base time.Time, tz string) (time.Time, error) {
	if err := ValidateExpression(expr); err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			loc = time.UTC
		} else {
			loc = l
		}
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}

	next := sched.Next(base.In(loc))
	return next.UTC(), nil
}

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var monthNames = []string{"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

// Describe builds a short human-readable summary of a cron expression,
// e.g. "runs at 9:30 on Monday in March". Expressions with field
// lists or step values fall back to a generic per-field description
// rather than attempting full enumeration.
func Describe(expr string) string {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return fmt.Sprintf("runs on schedule %q", expr)
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	var parts []string

	switch {
	case hour != "*" && minute != "*" && !strings.ContainsAny(hour, "*/,-") && !strings.ContainsAny(minute, "*/,-"):
		parts = append(parts, fmt.Sprintf("at %s:%02s", hour, pad(minute)))
	case hour != "*" && !strings.ContainsAny(hour, "*/,-"):
		parts = append(parts, fmt.Sprintf("at hour %s", hour))
	case minute != "*" && !strings.ContainsAny(minute, "*/,-"):
		parts = append(parts, fmt.Sprintf("at minute %s", minute))
	}

	if dow != "*" && !strings.ContainsAny(dow, "*/,-") {
		if idx, err := parseIndex(dow, len(weekdayNames)); err == nil {
			parts = append(parts, "on "+weekdayNames[idx])
		} else {
			parts = append(parts, "on weekday "+dow)
		}
	}

	if dom != "*" && !strings.ContainsAny(dom, "*/,-") {
		parts = append(parts, "on day "+dom+" of the month")
	}

	if month != "*" && !strings.ContainsAny(month, "*/,-") {
		if idx, err := parseIndex(month, len(monthNames)); err == nil && idx > 0 {
			parts = append(parts, "in "+monthNames[idx])
		} else {
			parts = append(parts, "in month "+month)
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("runs on schedule %q", expr)
	}
	return "runs " + strings.Join(parts, " ")
}

func pad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func parseIndex(s string, max int) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 0 || n >= max {
		return 0, fmt.Errorf("index out of range")
	}
	return n, nil
}
