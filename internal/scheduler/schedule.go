package scheduler

import (
	"time"

	"TableWatch/internal/config"
)

const fallbackDelay = 5 * time.Minute

// Window sets the poll interval for local hours in [From, To).
type Window struct {
	From     int
	To       int
	Interval time.Duration
}

// PollSchedule maps the hour of day to the delay before the next pass.
type PollSchedule []Window

// DefaultSchedule polls densely while people order dinner and sparsely at night.
func DefaultSchedule() PollSchedule {
	return PollSchedule{
		{From: 0, To: 7, Interval: 30 * time.Minute},
		{From: 7, To: 10, Interval: 5 * time.Minute},
		{From: 10, To: 12, Interval: 2 * time.Minute},
		{From: 12, To: 15, Interval: time.Minute},
		{From: 15, To: 17, Interval: 2 * time.Minute},
		{From: 17, To: 21, Interval: time.Minute},
		{From: 21, To: 23, Interval: 3 * time.Minute},
		{From: 23, To: 24, Interval: 15 * time.Minute},
	}
}

// ScheduleFromConfig converts configured windows; an empty list gives the default table.
func ScheduleFromConfig(windows []config.PollWindow) PollSchedule {
	if len(windows) == 0 {
		return DefaultSchedule()
	}
	schedule := make(PollSchedule, 0, len(windows))
	for _, w := range windows {
		if w.Seconds <= 0 || w.From < 0 || w.To > 24 || w.From >= w.To {
			continue
		}
		schedule = append(schedule, Window{
			From:     w.From,
			To:       w.To,
			Interval: time.Duration(w.Seconds) * time.Second,
		})
	}
	if len(schedule) == 0 {
		return DefaultSchedule()
	}
	return schedule
}

// Delay returns the interval of the first window containing hour.
func (p PollSchedule) Delay(hour int) time.Duration {
	for _, w := range p {
		if hour >= w.From && hour < w.To {
			return w.Interval
		}
	}
	return fallbackDelay
}
