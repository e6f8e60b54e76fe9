package input

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/smoke/internal/core/properties"
	"github.com/zeusync/smoke/internal/core/system"
)

// Device is the external source of input events. Poll is called once per
// frame from the primary thread.
type Device interface {
	Poll(frame uint64) []system.InputEvent
}

// QueueDevice hands out whatever was pushed since the last poll.
type QueueDevice struct {
	mu     sync.Mutex
	events []system.InputEvent
}

func (d *QueueDevice) Push(events ...system.InputEvent) {
	d.mu.Lock()
	d.events = append(d.events, events...)
	d.mu.Unlock()
}

func (d *QueueDevice) Poll(uint64) []system.InputEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.events
	d.events = nil
	return out
}

type timedEvent struct {
	frame uint64
	event system.InputEvent
}

// Timeline replays events at fixed frame numbers. It is built from a scene's
// repeated Timeline properties, each a mapping with the keys action, frame
// and pressed.
type Timeline struct {
	events []timedEvent
}

func (t *Timeline) Poll(frame uint64) []system.InputEvent {
	var out []system.InputEvent
	for _, te := range t.events {
		if te.frame == frame {
			out = append(out, te.event)
		}
	}
	return out
}

// parseTimeline reads Timeline entries. Mapping values arrive ordered by key:
// action, frame, pressed.
func parseTimeline(props []properties.Property) (*Timeline, error) {
	t := &Timeline{}
	for i, p := range props {
		if len(p.Values) != 3 {
			return nil, fmt.Errorf("timeline[%d]: want action, frame and pressed", i)
		}
		action, ok := p.Values[0].(string)
		if !ok {
			return nil, fmt.Errorf("timeline[%d]: action must be a string", i)
		}
		frame, ok := p.Values[1].(int)
		if !ok || frame < 0 {
			return nil, fmt.Errorf("timeline[%d]: frame must be a non-negative integer", i)
		}
		pressed, ok := p.Values[2].(bool)
		if !ok {
			return nil, fmt.Errorf("timeline[%d]: pressed must be a boolean", i)
		}
		t.events = append(t.events, timedEvent{
			frame: uint64(frame),
			event: system.InputEvent{Action: action, Pressed: pressed, Value: 1},
		})
	}
	sort.SliceStable(t.events, func(a, b int) bool { return t.events[a].frame < t.events[b].frame })
	return t, nil
}
