// Agent activity history: an ordered, append-only record of moves and trades.
// Only the most recent entries stay in memory; a sink can receive every entry
// as it is written so long runs keep a complete log elsewhere.
package agents

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/mini-market/internal/world"
)

// DefaultHistoryCapacity is how many activities an agent keeps in memory.
const DefaultHistoryCapacity = 256

// ActivityKind distinguishes history records.
type ActivityKind uint8

const (
	ActivityMove ActivityKind = iota
	ActivityTrade
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityMove:
		return "move"
	case ActivityTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ActivityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActivityKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "move":
		*k = ActivityMove
	case "trade":
		*k = ActivityTrade
	default:
		return fmt.Errorf("unknown activity kind %q", text)
	}
	return nil
}

// Activity is one history record. Move records fill OldPos/NewPos; trade
// records fill PartnerID and both post-trade wealths.
type Activity struct {
	Tick    uint64       `json:"tick"`
	AgentID AgentID      `json:"agent_id"`
	Kind    ActivityKind `json:"kind"`

	OldPos world.Position `json:"old_pos"`
	NewPos world.Position `json:"new_pos"`

	PartnerID     AgentID `json:"partner_id"`
	Wealth        float64 `json:"wealth"`
	PartnerWealth float64 `json:"partner_wealth"`
}

// MarshalJSON always writes the trade fields of a trade record, zeros
// included, and leaves them out of move records.
func (a Activity) MarshalJSON() ([]byte, error) {
	type record struct {
		Tick          uint64         `json:"tick"`
		AgentID       AgentID        `json:"agent_id"`
		Kind          ActivityKind   `json:"kind"`
		OldPos        world.Position `json:"old_pos"`
		NewPos        world.Position `json:"new_pos"`
		PartnerID     *AgentID       `json:"partner_id,omitempty"`
		Wealth        *float64       `json:"wealth,omitempty"`
		PartnerWealth *float64       `json:"partner_wealth,omitempty"`
	}
	r := record{
		Tick:    a.Tick,
		AgentID: a.AgentID,
		Kind:    a.Kind,
		OldPos:  a.OldPos,
		NewPos:  a.NewPos,
	}
	if a.Kind == ActivityTrade {
		r.PartnerID = &a.PartnerID
		r.Wealth = &a.Wealth
		r.PartnerWealth = &a.PartnerWealth
	}
	return json.Marshal(r)
}

// ActivityLog is a fixed-capacity ring of activities. Once full, each new
// entry overwrites the oldest. Order is always oldest to newest.
type ActivityLog struct {
	entries []Activity
	head    int // index of the oldest entry
	size    int
	total   uint64
	sink    func(Activity)
}

// NewActivityLog creates a log holding at most capacity entries.
// A non-positive capacity falls back to DefaultHistoryCapacity.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &ActivityLog{entries: make([]Activity, capacity)}
}

// SetSink registers a function that receives every appended activity.
func (l *ActivityLog) SetSink(sink func(Activity)) {
	l.sink = sink
}

// Append records an activity.
func (l *ActivityLog) Append(act Activity) {
	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.head+l.size)%capacity] = act
		l.size++
	} else {
		l.entries[l.head] = act
		l.head = (l.head + 1) % capacity
	}
	l.total++
	if l.sink != nil {
		l.sink(act)
	}
}

// Len returns the number of entries held in memory.
func (l *ActivityLog) Len() int {
	return l.size
}

// Cap returns the ring capacity.
func (l *ActivityLog) Cap() int {
	return len(l.entries)
}

// Total returns how many activities were ever appended, evicted ones included.
func (l *ActivityLog) Total() uint64 {
	return l.total
}

// All returns the retained entries, oldest first.
func (l *ActivityLog) All() []Activity {
	return l.Recent(l.size)
}

// Recent returns up to count of the newest entries, oldest first.
func (l *ActivityLog) Recent(count int) []Activity {
	if count > l.size {
		count = l.size
	}
	if count <= 0 {
		return nil
	}
	out := make([]Activity, count)
	start := l.size - count
	for i := 0; i < count; i++ {
		out[i] = l.entries[(l.head+start+i)%len(l.entries)]
	}
	return out
}

// Last returns the newest entry.
func (l *ActivityLog) Last() (Activity, bool) {
	if l.size == 0 {
		return Activity{}, false
	}
	return l.entries[(l.head+l.size-1)%len(l.entries)], true
}
