package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var (
	weeklyRe  = regexp.MustCompile(`^every\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s+at\s+(.+)$`)
	dailyRe   = regexp.MustCompile(`^every\s+day\s+at\s+(.+)$`)
	weekdayRe = regexp.MustCompile(`^every\s+weekday\s+at\s+(.+)$`)
)

var dayField = map[string]string{
	"sunday":    "0",
	"monday":    "1",
	"tuesday":   "2",
	"wednesday": "3",
	"thursday":  "4",
	"friday":    "5",
	"saturday":  "6",
}

var timeOfDayLayouts = []string{
	"15:04",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
	"15",
}

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Kind distinguishes a recurring cron trigger from a one-shot absolute
// date trigger.
type Kind string

const (
	KindCron Kind = "cron"
	KindDate Kind = "date"
)

// Trigger is the parsed result of a when-string: either a recurring
// cron.Schedule or a fixed point in time.
type Trigger struct {
	Kind     Kind
	Cron     cron.Schedule
	CronExpr string
	At       time.Time
	Summary  string
}

// parseTimeOfDay parses a clock-time string using the supported layouts.
func parseTimeOfDay(s string, loc *time.Location) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeOfDayLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("scheduler: unrecognized time of day %q", s)
}

// ParseWhen implements the when-grammar: WEEKLY | DAILY | WEEKDAY |
// ABSOLUTE, matched case-insensitively after trim.
func ParseWhen(when string, loc *time.Location) (Trigger, error) {
	if loc == nil {
		loc = time.UTC
	}
	lowered := strings.ToLower(strings.TrimSpace(when))

	if m := weeklyRe.FindStringSubmatch(lowered); m != nil {
		day := m[1]
		hour, minute, err := parseTimeOfDay(m[2], loc)
		if err != nil {
			return Trigger{}, err
		}
		expr := fmt.Sprintf("%d %d * * %s", minute, hour, dayField[day])
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return Trigger{}, fmt.Errorf("scheduler: build weekly cron: %w", err)
		}
		return Trigger{
			Kind:     KindCron,
			Cron:     sched,
			CronExpr: expr,
			Summary:  fmt.Sprintf("weekly on %s %02d:%02d", day, hour, minute),
		}, nil
	}

	if m := dailyRe.FindStringSubmatch(lowered); m != nil {
		hour, minute, err := parseTimeOfDay(m[1], loc)
		if err != nil {
			return Trigger{}, err
		}
		expr := fmt.Sprintf("%d %d * * *", minute, hour)
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return Trigger{}, fmt.Errorf("scheduler: build daily cron: %w", err)
		}
		return Trigger{
			Kind:     KindCron,
			Cron:     sched,
			CronExpr: expr,
			Summary:  fmt.Sprintf("daily at %02d:%02d", hour, minute),
		}, nil
	}

	if m := weekdayRe.FindStringSubmatch(lowered); m != nil {
		hour, minute, err := parseTimeOfDay(m[1], loc)
		if err != nil {
			return Trigger{}, err
		}
		expr := fmt.Sprintf("%d %d * * 1-5", minute, hour)
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return Trigger{}, fmt.Errorf("scheduler: build weekday cron: %w", err)
		}
		return Trigger{
			Kind:     KindCron,
			Cron:     sched,
			CronExpr: expr,
			Summary:  fmt.Sprintf("weekdays at %02d:%02d", hour, minute),
		}, nil
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(when), loc); err == nil {
			return Trigger{Kind: KindDate, At: t, Summary: t.Format(time.RFC3339)}, nil
		}
	}
	return Trigger{}, fmt.Errorf("scheduler: unrecognized when expression %q", when)
}

// Next returns the next fire time after now, and whether one exists
// (one-shot triggers in the past have none).
func (t Trigger) Next(now time.Time) (time.Time, bool) {
	switch t.Kind {
	case KindDate:
		if now.After(t.At) {
			return time.Time{}, false
		}
		return t.At, true
	case KindCron:
		next := t.Cron.Next(now)
		return next, !next.IsZero()
	default:
		return time.Time{}, false
	}
}
