package link

import (
	"bytes"
	"strings"
)

// Outcome classifies a single read from the engine socket.
type Outcome int

const (
	// NoData: the read returned nothing, or nothing complete.
	NoData Outcome = iota
	// Frame: a complete record was extracted.
	Frame
	// Disconnected: the peer closed the stream or the socket failed.
	Disconnected
)

func (o Outcome) String() string {
	switch o {
	case Frame:
		return "frame"
	case Disconnected:
		return "disconnected"
	default:
		return "no-data"
	}
}

// LastRecord returns the newest complete record in b: the bytes between the
// last two newlines. Older records in the same buffer and any trailing
// fragment are dropped, since only the latest sample matters to a live
// display. Invalid UTF-8 is removed rather than rejected.
func LastRecord(b []byte) (string, bool) {
	last := bytes.LastIndexByte(b, '\n')
	if last < 0 {
		return "", false
	}
	prev := bytes.LastIndexByte(b[:last], '\n')
	if prev < 0 {
		return "", false
	}
	return strings.ToValidUTF8(string(b[prev+1:last]), ""), true
}

// superseded counts complete records in b that LastRecord discards, assuming
// b starts at a record boundary.
func superseded(b []byte) int {
	n := bytes.Count(b, []byte{'\n'}) - 2
	if n < 0 {
		return 0
	}
	return n
}

// maxCarry bounds the bytes kept between reads when no newline shows up.
const maxCarry = 1 << 20

// Framer reassembles the stream across reads. It keeps everything from the
// last newline on, so a record split over two reads, or a single record per
// read, is still bounded by two newlines when LastRecord runs.
type Framer struct {
	carry      []byte
	superseded int
}

// Push appends one read and returns the newest complete record, if any.
func (f *Framer) Push(b []byte) (string, bool) {
	f.carry = append(f.carry, b...)
	text, ok := LastRecord(f.carry)
	f.superseded = superseded(f.carry)

	if i := bytes.LastIndexByte(f.carry, '\n'); i >= 0 {
		f.carry = append(f.carry[:0], f.carry[i:]...)
	} else if len(f.carry) > maxCarry {
		// Unbounded junk without a newline: nothing in it can be framed.
		f.carry = f.carry[:0]
	}
	return text, ok
}

// Superseded returns how many complete records the last Push skipped over.
func (f *Framer) Superseded() int {
	return f.superseded
}

// Reset drops carried bytes, for use after the connection changes.
func (f *Framer) Reset() {
	f.carry = f.carry[:0]
}
