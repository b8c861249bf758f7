package oai

import (
	"time"

	"github.com/jinzhu/now"
)

const oneDay = 24 * time.Hour

// Window represents a span of time, from and until inclusive.
type Window struct {
	From  time.Time
	Until time.Time
}

// TimeShiftFunc maps a point in time to a window boundary.
type TimeShiftFunc func(time.Time) time.Time

func (w Window) makeWindows(left, right TimeShiftFunc) ([]Window, error) {
	var ws []Window
	if w.From.After(w.Until) {
		return ws, ErrInvalidDateRange
	}
	var start, end time.Time
	from := w.From
	for {
		switch {
		case len(ws) == 0:
			start = now.New(w.From).BeginningOfDay()
		default:
			start = left(from)
		}
		end = right(from)
		if end.After(w.Until) {
			ws = append(ws, Window{From: start, Until: now.New(w.Until).EndOfDay()})
			break
		}
		ws = append(ws, Window{From: start, Until: end})
		from = end.Add(oneDay)
	}
	return ws, nil
}

// Monthly splits the window along calendar months.
func (w Window) Monthly() ([]Window, error) {
	shiftLeft := func(t time.Time) time.Time {
		return now.New(t).BeginningOfMonth()
	}
	shiftRight := func(t time.Time) time.Time {
		return now.New(t).EndOfMonth()
	}
	return w.makeWindows(shiftLeft, shiftRight)
}

// Weekly splits the window along calendar weeks.
func (w Window) Weekly() ([]Window, error) {
	shiftLeft := func(t time.Time) time.Time {
		return now.New(t).BeginningOfWeek()
	}
	shiftRight := func(t time.Time) time.Time {
		return now.New(t).EndOfWeek()
	}
	return w.makeWindows(shiftLeft, shiftRight)
}

// Days splits the window into spans of n days. Sources limiting the
// result set size of a single selective request harvest in day spans.
func (w Window) Days(n int) ([]Window, error) {
	if n < 1 {
		n = 1
	}
	shiftLeft := func(t time.Time) time.Time {
		return now.New(t).BeginningOfDay()
	}
	shiftRight := func(t time.Time) time.Time {
		return now.New(t.Add(time.Duration(n-1) * oneDay)).EndOfDay()
	}
	return w.makeWindows(shiftLeft, shiftRight)
}
