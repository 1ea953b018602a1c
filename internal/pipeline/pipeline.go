// Package pipeline hands level-change interrupts from the GPIO driver to a
// single consumer goroutine that records the door contact level.
//
// The interrupt side only enqueues the channel number. The consumer reads
// the live level when it wakes, so a burst of edges collapses to the latest
// level and a full queue can drop events without losing the final state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sweeney/room-sensor/internal/gpio"
)

// LevelSink receives the level observed by the consumer.
type LevelSink interface {
	SetDoor(level bool)
}

// Pipeline owns the interrupt queue and the consumer loop for one channel.
type Pipeline struct {
	chip   gpio.Chip
	queue  *Queue
	sink   LevelSink
	logger *slog.Logger

	configured atomic.Bool
}

// New creates a Pipeline. capacity <= 0 selects DefaultCapacity.
func New(chip gpio.Chip, sink LevelSink, capacity int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		chip:   chip,
		queue:  NewQueue(capacity),
		sink:   sink,
		logger: logger,
	}
}

// Configure registers the interrupt handler for channel. It may be called
// once, and must return before Run starts. An initial event is queued so the
// consumer records the level present at startup.
//
// The initial event is pushed before the handler is installed: once Watch
// returns the interrupt handler is the only producer.
func (p *Pipeline) Configure(channel int, mode gpio.EdgeMode) error {
	if !p.configured.CompareAndSwap(false, true) {
		return errors.New("pipeline: already configured")
	}
	p.queue.TryPush(Event{Channel: channel})
	if err := p.chip.Watch(channel, mode, p.interrupt); err != nil {
		// No consumer runs yet, so the initial event can be taken back.
		p.queue.TryPop()
		p.configured.Store(false)
		return fmt.Errorf("watch pin %d: %w", channel, err)
	}
	p.logger.Info("interrupt registered", "pin", channel, "edge", mode.String(), "queue", p.queue.Cap())
	return nil
}

// interrupt runs in the driver's interrupt context.
func (p *Pipeline) interrupt(channel int) {
	p.queue.TryPush(Event{Channel: channel})
}

// Run consumes events until ctx is done. It is the only writer of the sink.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		ev, err := p.queue.Pop(ctx)
		if err != nil {
			return
		}
		p.handle(ev)
	}
}

func (p *Pipeline) handle(ev Event) {
	level, err := p.chip.Level(ev.Channel)
	if err != nil {
		p.logger.Warn("level read failed", "pin", ev.Channel, "err", err)
		return
	}
	p.sink.SetDoor(level)
	p.logger.Info("interrupt", "pin", ev.Channel, "level", level)
}

// drain handles every queued event without blocking and returns the count.
func (p *Pipeline) drain() int {
	n := 0
	for {
		ev, ok := p.queue.TryPop()
		if !ok {
			return n
		}
		p.handle(ev)
		n++
	}
}
