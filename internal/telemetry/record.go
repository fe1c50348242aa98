package telemetry

import (
	"encoding/json"
	"fmt"
)

// Slot is one controller slot as reported by the engine. Disconnected slots
// carry only ID and Connected.
type Slot struct {
	ID        int    `json:"id"`
	Name      string `json:"name,omitempty"`
	Connected bool   `json:"conn"`
	Axes      []int  `json:"axes,omitempty"`
	Buttons   []int  `json:"btns,omitempty"`
}

// Pressed reports whether button i is held.
func (s Slot) Pressed(i int) bool {
	return i >= 0 && i < len(s.Buttons) && s.Buttons[i] != 0
}

// Axis returns axis i, or 0 when the slot does not report it.
func (s Slot) Axis(i int) int {
	if i < 0 || i >= len(s.Axes) {
		return 0
	}
	return s.Axes[i]
}

// Record is one decoded telemetry sample. Missing counters decode as zero.
// Fields keeps every top-level key verbatim for pass-through consumers.
type Record struct {
	Heartbeat uint64
	Late      uint64
	Slots     []Slot
	Fields    map[string]json.RawMessage
}

// DecodeRecord parses one newline-free JSON object. Counters of the wrong type
// make the whole record undecodable; a malformed "slots" value only leaves
// Slots empty since auxiliary fields are opaque.
func DecodeRecord(raw string) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if fields == nil {
		return Record{}, fmt.Errorf("decode record: not an object")
	}

	rec := Record{Fields: fields}
	if v, ok := fields["hb"]; ok {
		if err := json.Unmarshal(v, &rec.Heartbeat); err != nil {
			return Record{}, fmt.Errorf("decode hb: %w", err)
		}
	}
	if v, ok := fields["late"]; ok {
		if err := json.Unmarshal(v, &rec.Late); err != nil {
			return Record{}, fmt.Errorf("decode late: %w", err)
		}
	}
	if v, ok := fields["slots"]; ok {
		var slots []Slot
		if json.Unmarshal(v, &slots) == nil {
			rec.Slots = slots
		}
	}
	return rec, nil
}
