// Package codec implements the framed binary wire format of the relay.
//
// Every message travels as one frame:
//
//	uint32 BE  payload length N
//	N bytes    payload
//
// and the payload carries, in order:
//
//	uint8      kind (0=CONNECT .. 5=USER_LEFT, see domain.Kind)
//	int64 BE   timestamp, milliseconds since epoch
//	uint32 BE  sender length, then UTF-8 sender bytes
//	uint32 BE  content length, then UTF-8 content bytes
//
// Nothing outside this package depends on the layout.
package codec

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf8"
)

const (
	// Version of the frame layout described above.
	Version = 1

	HeaderSize          = 4
	DefaultMaxFrameSize = 64 << 10

	// kind + timestamp + two string length prefixes
	minPayloadSize = 1 + 8 + 4 + 4
)

// PayloadSize is the number of bytes the message occupies on the wire, header excluded.
// It is the value compared against a reader's maximum frame size.
func PayloadSize(m domain.Message) int {
	return minPayloadSize + len(m.Sender()) + len(m.Content())
}

// Encode returns the complete frame (header included) for the message.
func Encode(m domain.Message) ([]byte, error) {
	if !m.Kind().IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %d", errors.ErrMalformedMessage, uint8(m.Kind()))
	}
	if !utf8.ValidString(m.Sender()) || !utf8.ValidString(m.Content()) {
		return nil, fmt.Errorf("%w: invalid UTF-8", errors.ErrMalformedMessage)
	}
	size := PayloadSize(m)
	if uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", errors.ErrMalformedMessage, size)
	}

	frame := make([]byte, 0, HeaderSize+size)
	frame = binary.BigEndian.AppendUint32(frame, uint32(size))
	frame = append(frame, byte(m.Kind()))
	frame = binary.BigEndian.AppendUint64(frame, uint64(m.Timestamp().UnixMilli()))
	frame = appendString(frame, m.Sender())
	frame = appendString(frame, m.Content())
	return frame, nil
}

// Decode parses exactly one complete frame. Trailing bytes are an error.
func Decode(frame []byte) (domain.Message, error) {
	if len(frame) < HeaderSize {
		return domain.Message{}, fmt.Errorf("%w: frame shorter than header", errors.ErrMalformedMessage)
	}
	size := binary.BigEndian.Uint32(frame)
	if uint64(size) != uint64(len(frame)-HeaderSize) {
		return domain.Message{}, fmt.Errorf("%w: header announces %d bytes, got %d",
			errors.ErrMalformedMessage, size, len(frame)-HeaderSize)
	}
	return DecodePayload(frame[HeaderSize:])
}

// DecodePayload parses a frame payload, header excluded.
func DecodePayload(payload []byte) (domain.Message, error) {
	if len(payload) < minPayloadSize {
		return domain.Message{}, fmt.Errorf("%w: payload of %d bytes is truncated",
			errors.ErrMalformedMessage, len(payload))
	}
	kind := domain.Kind(payload[0])
	if !kind.IsValid() {
		return domain.Message{}, fmt.Errorf("%w: unknown kind %d", errors.ErrMalformedMessage, payload[0])
	}
	millis := int64(binary.BigEndian.Uint64(payload[1:9]))
	rest := payload[9:]

	sender, rest, err := readString(rest, "sender")
	if err != nil {
		return domain.Message{}, err
	}
	content, rest, err := readString(rest, "content")
	if err != nil {
		return domain.Message{}, err
	}
	if len(rest) != 0 {
		return domain.Message{}, fmt.Errorf("%w: %d trailing bytes", errors.ErrMalformedMessage, len(rest))
	}
	return domain.NewMessageAt(kind, sender, content, time.UnixMilli(millis)), nil
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func readString(b []byte, field string) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("%w: missing %s length", errors.ErrMalformedMessage, field)
	}
	n := binary.BigEndian.Uint32(b)
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return "", nil, fmt.Errorf("%w: %s length %d exceeds payload", errors.ErrMalformedMessage, field, n)
	}
	s := string(b[:n])
	if !utf8.ValidString(s) {
		return "", nil, fmt.Errorf("%w: %s is not valid UTF-8", errors.ErrMalformedMessage, field)
	}
	return s, b[n:], nil
}

// WriteFrame encodes the message and writes the whole frame in a single Write call.
func WriteFrame(w io.Writer, m domain.Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Reader decodes consecutive frames from a byte stream.
type Reader struct {
	r            *bufio.Reader
	maxFrameSize int
	header       [HeaderSize]byte
}

func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{r: bufio.NewReader(r), maxFrameSize: maxFrameSize}
}

// Read returns the next message.
// io.EOF is returned untouched when the stream ends on a frame boundary,
// transport errors are returned as is, and every framing problem wraps ErrMalformedMessage.
func (fr *Reader) Read() (domain.Message, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return domain.Message{}, fmt.Errorf("%w: truncated header", errors.ErrMalformedMessage)
		}
		return domain.Message{}, err
	}
	size := binary.BigEndian.Uint32(fr.header[:])
	if size == 0 || uint64(size) > uint64(fr.maxFrameSize) {
		return domain.Message{}, fmt.Errorf("%w: frame of %d bytes (max %d)",
			errors.ErrMalformedMessage, size, fr.maxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return domain.Message{}, fmt.Errorf("%w: truncated payload", errors.ErrMalformedMessage)
		}
		return domain.Message{}, err
	}
	return DecodePayload(payload)
}
