// Package cron parses the tick schedule of the scheduled triggering service
// and the HH:MM time expressions of scheduled subscriptions.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Parse accepts a five-field expression or a descriptor such as "@every 1m".
// Schedules are evaluated in UTC.
func (p *Parser) Parse(expression string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &schedule{sched: sched}, nil
}

type Schedule interface {
	Next(after time.Time) time.Time
}

type schedule struct {
	sched cron.Schedule
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.UTC())
}

// TimeOfDay is a wall-clock time in UTC.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// On returns the instant of t on the UTC date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
}

// ParseTimeOfDay parses HH:MM (24h).
func ParseTimeOfDay(expr string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(expr), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time expression %q: want HH:MM", expr)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || len(hh) > 2 || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("time expression %q: invalid hour", expr)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time expression %q: invalid minute", expr)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}
