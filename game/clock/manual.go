package clock

import "time"

// Manual is a virtual clock. Callbacks fire synchronously inside Advance,
// in due-time order, on the caller's goroutine. It is not safe for
// concurrent use; pair it with Inline.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	due     time.Time
	period  time.Duration
	fn      func()
	seq     int
	stopped bool
}

func (t *manualTimer) Stop() {
	t.stopped = true
}

// NewManual creates a virtual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// AfterFunc schedules fn once, d from now.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

// Every schedules fn every period. A non-positive period is treated as one
// nanosecond so Advance always terminates.
func (m *Manual) Every(period time.Duration, fn func()) Timer {
	if period <= 0 {
		period = time.Nanosecond
	}
	return m.add(period, period, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) *manualTimer {
	m.seq++
	t := &manualTimer{due: m.now.Add(d), period: period, fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		next := m.next(target)
		if next == nil {
			break
		}
		m.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			next.stopped = true
		}
		next.fn()
	}
	m.now = target
	m.compact()
}

// Pending returns the number of live timers.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) next(target time.Time) *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if t.stopped || t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
}
