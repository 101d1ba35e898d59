// Package protocol implements the quote stream wire format: "~m~<len>~m~<payload>"
// frames carrying JSON messages, plus builders and parsers for those messages.
package protocol

import (
	"bytes"
	"strconv"
)

const (
	// FrameMarker delimits the decimal length header on both sides.
	FrameMarker = "~m~"

	// HeartbeatMarker prefixes keep-alive payloads, which carry no JSON.
	HeartbeatMarker = "~h~"

	// MaxFrameSize is the largest payload a header may declare. Larger
	// declarations are treated as unframed so a session never buffers them.
	MaxFrameSize = 4 << 20

	// maxLengthDigits bounds the header; anything longer is not a frame.
	maxLengthDigits = 7
)

var (
	frameMarker     = []byte(FrameMarker)
	heartbeatMarker = []byte(HeartbeatMarker)
)

// -----------------------------------------------------------------------------

// DecodeState tells the caller what stopped the decoder.
type DecodeState int

const (
	// Drained means every byte of the buffer was consumed.
	Drained DecodeState = iota
	// Incomplete means a frame started at the cursor but its header or payload
	// runs past the end of the buffer. Keep the remainder and feed more bytes.
	Incomplete
	// Unframed means the bytes at the cursor are not a frame header.
	Unframed
)

func (s DecodeState) String() string {
	switch s {
	case Drained:
		return "drained"
	case Incomplete:
		return "incomplete"
	case Unframed:
		return "unframed"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------

// Result is the outcome of decoding a buffer.
type Result struct {
	Frames   [][]byte
	Consumed int
	State    DecodeState
}

// -----------------------------------------------------------------------------

// Encode wraps payload in a length-prefixed frame.
func Encode(payload []byte) []byte {
	length := strconv.Itoa(len(payload))
	out := make([]byte, 0, 2*len(FrameMarker)+len(length)+len(payload))
	out = append(out, FrameMarker...)
	out = append(out, length...)
	out = append(out, FrameMarker...)
	return append(out, payload...)
}

// -----------------------------------------------------------------------------

// IsHeartbeat reports whether data is a keep-alive rather than a JSON payload.
func IsHeartbeat(data []byte) bool {
	return bytes.HasPrefix(data, heartbeatMarker)
}

// -----------------------------------------------------------------------------

// DecodeAll extracts consecutive frames from the start of buf. It never fails:
// decoding stops at the first incomplete or unrecognised header and Consumed
// marks where. Returned frames alias buf.
func DecodeAll(buf []byte) Result {
	var res Result
	offset := 0

	for offset < len(buf) {
		payloadStart, length, state := parseHeader(buf[offset:])
		if state != Drained {
			res.State = state
			break
		}

		end := offset + payloadStart + length
		if end > len(buf) {
			res.State = Incomplete
			break
		}

		res.Frames = append(res.Frames, buf[offset+payloadStart:end])
		offset = end
	}

	res.Consumed = offset
	return res
}

// -----------------------------------------------------------------------------

// parseHeader reads "~m~<digits>~m~" at the start of b. On success it returns
// the payload offset and declared length with state Drained.
func parseHeader(b []byte) (int, int, DecodeState) {
	// Leading marker, possibly cut short
	if len(b) < len(frameMarker) {
		if bytes.HasPrefix(frameMarker, b) {
			return 0, 0, Incomplete
		}
		return 0, 0, Unframed
	}
	if !bytes.HasPrefix(b, frameMarker) {
		return 0, 0, Unframed
	}

	// Decimal length
	pos := len(frameMarker)
	digitsStart := pos
	for pos < len(b) && b[pos] >= '0' && b[pos] <= '9' {
		pos++
		if pos-digitsStart > maxLengthDigits {
			return 0, 0, Unframed
		}
	}
	if pos == len(b) {
		return 0, 0, Incomplete
	}
	if pos == digitsStart {
		return 0, 0, Unframed
	}
	length, err := strconv.Atoi(string(b[digitsStart:pos]))
	if err != nil || length > MaxFrameSize {
		return 0, 0, Unframed
	}

	// Trailing marker, possibly cut short
	rest := b[pos:]
	if len(rest) < len(frameMarker) {
		if bytes.HasPrefix(frameMarker, rest) {
			return 0, 0, Incomplete
		}
		return 0, 0, Unframed
	}
	if !bytes.HasPrefix(rest, frameMarker) {
		return 0, 0, Unframed
	}

	return pos + len(frameMarker), length, Drained
}

// -----------------------------------------------------------------------------

// Decoder re-buffers frames split across transport reads. Not safe for
// concurrent use; one session's receiver owns it.
type Decoder struct {
	buf []byte
}

// -----------------------------------------------------------------------------

// Feed appends data and returns every frame that is now complete, heartbeat
// frames excluded. Unframed bytes are dropped along with the rest of the buffer
// and reported through the returned state.
func (d *Decoder) Feed(data []byte) ([][]byte, DecodeState) {
	if len(d.buf) == 0 && IsHeartbeat(data) {
		return nil, Drained
	}
	d.buf = append(d.buf, data...)

	res := DecodeAll(d.buf)
	frames := make([][]byte, 0, len(res.Frames))
	for _, f := range res.Frames {
		if IsHeartbeat(f) {
			continue
		}
		frames = append(frames, bytes.Clone(f))
	}

	switch res.State {
	case Incomplete:
		d.buf = append(d.buf[:0], d.buf[res.Consumed:]...)
	default:
		d.buf = d.buf[:0]
	}
	return frames, res.State
}

// -----------------------------------------------------------------------------

// Pending returns the number of buffered bytes waiting for completion.
func (d *Decoder) Pending() int {
	return len(d.buf)
}
