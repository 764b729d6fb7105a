package timers

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Timer struct {
	ID       string
	Interval time.Duration
	Task     func()
	rounds   int
}

type slot struct {
	timers map[string]*Timer
}

// TimingWheel runs repeating tasks with tick resolution. Intervals longer than
// one revolution wait the extra rounds in their slot.
type TimingWheel struct {
	clock        clockwork.Clock
	tickDuration time.Duration
	slots        []*slot
	currentPos   int
	slotsCount   int
	mutex        sync.Mutex
	spawn        func(func())
}

func NewTimingWheel(clock clockwork.Clock, tickDuration time.Duration, slotsCount int) *TimingWheel {
	tw := &TimingWheel{
		clock:        clock,
		tickDuration: tickDuration,
		slotsCount:   slotsCount,
		slots:        make([]*slot, slotsCount),
		spawn:        func(f func()) { go f() },
	}

	for i := range tw.slots {
		tw.slots[i] = &slot{timers: make(map[string]*Timer)}
	}
	return tw
}

// Run advances the wheel until ctx is done.
func (tw *TimingWheel) Run(ctx context.Context) {
	ticker := tw.clock.NewTicker(tw.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tw.tick()
		}
	}
}

func (tw *TimingWheel) tick() {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.currentPos = (tw.currentPos + 1) % tw.slotsCount
	current := tw.slots[tw.currentPos]

	var due []*Timer
	for id, timer := range current.timers {
		if timer.rounds > 0 {
			timer.rounds--
			continue
		}
		due = append(due, timer)
		delete(current.timers, id)
	}

	for _, timer := range due {
		tw.spawn(timer.Task)
		tw.place(timer)
	}
}

// place puts the timer Interval ticks ahead of the current position.
func (tw *TimingWheel) place(t *Timer) {
	ticks := int(t.Interval / tw.tickDuration)
	if ticks < 1 {
		ticks = 1
	}

	t.rounds = (ticks - 1) / tw.slotsCount
	pos := (tw.currentPos + ticks) % tw.slotsCount
	tw.slots[pos].timers[t.ID] = t
}

func (tw *TimingWheel) AddTimer(id string, interval time.Duration, task func()) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.remove(id)
	tw.place(&Timer{ID: id, Interval: interval, Task: task})
}

func (tw *TimingWheel) RemoveTimer(id string) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.remove(id)
}

func (tw *TimingWheel) remove(id string) *Timer {
	for _, s := range tw.slots {
		if t, ok := s.timers[id]; ok {
			delete(s.timers, id)
			return t
		}
	}
	return nil
}

// UpdateTimer reschedules an existing timer from now with a new interval.
func (tw *TimingWheel) UpdateTimer(id string, newInterval time.Duration) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	if t := tw.remove(id); t != nil {
		t.Interval = newInterval
		tw.place(t)
	}
}
