package codec

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKinds = []domain.Kind{
	domain.Connect, domain.Disconnect, domain.Text,
	domain.UserList, domain.UserJoined, domain.UserLeft,
}

func TestCodec_Decode_Reproduces_Fields(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 10, 30, 0, 123_000_000, time.UTC)

	for _, kind := range allKinds {
		// Given a message of each kind
		msg := domain.NewMessageAt(kind, "alice", "héllo, wörld", at)

		// When encoding then decoding it
		frame, err := Encode(msg)
		req.NoError(err)
		decoded, err := Decode(frame)
		req.NoError(err)

		// Then every field survives
		req.Equal(msg.Kind(), decoded.Kind())
		req.Equal(msg.Sender(), decoded.Sender())
		req.Equal(msg.Content(), decoded.Content())
		req.True(msg.Timestamp().Equal(decoded.Timestamp()))
	}
}

func TestCodec_Encode_Is_Stable_On_Decoded_Bytes(t *testing.T) {
	req := require.New(t)
	for _, kind := range allKinds {
		frame, err := Encode(domain.NewMessage(kind, "bob", "hi"))
		req.NoError(err)

		decoded, err := Decode(frame)
		req.NoError(err)
		reencoded, err := Encode(decoded)
		req.NoError(err)
		req.Equal(frame, reencoded)
	}
}

func TestCodec_Encode_Layout(t *testing.T) {
	req := require.New(t)
	msg := domain.NewMessageAt(domain.Text, "ab", "xyz", time.UnixMilli(258))

	frame, err := Encode(msg)
	req.NoError(err)

	expected := []byte{
		0, 0, 0, 22, // payload length
		2,                      // TEXT
		0, 0, 0, 0, 0, 0, 1, 2, // timestamp 258
		0, 0, 0, 2, 'a', 'b', // sender
		0, 0, 0, 3, 'x', 'y', 'z', // content
	}
	req.Equal(expected, frame)
}

func TestCodec_Decode_Malformed(t *testing.T) {
	valid, err := Encode(domain.NewMessage(domain.Text, "bob", "hi"))
	require.NoError(t, err)

	unknownKind := bytes.Clone(valid)
	unknownKind[HeaderSize] = 42

	wrongLength := bytes.Clone(valid)
	wrongLength[3]++

	badUTF8, err := Encode(domain.NewMessage(domain.Text, "bob", "hi"))
	require.NoError(t, err)
	badUTF8[len(badUTF8)-1] = 0xff

	senderTooLong := bytes.Clone(valid)
	senderTooLong[HeaderSize+1+8+3] = 200

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"header only", []byte{0, 0, 0, 0}},
		{"unknown kind", unknownKind},
		{"header length mismatch", wrongLength},
		{"trailing bytes", append(bytes.Clone(valid), 0)},
		{"invalid utf8", badUTF8},
		{"sender length beyond payload", senderTooLong},
		{"truncated", valid[:len(valid)-2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			require.ErrorIs(t, err, errors.ErrMalformedMessage)
		})
	}
}

func TestCodec_Encode_Rejects_Unknown_Kind(t *testing.T) {
	_, err := Encode(domain.NewMessage(domain.Kind(9), "bob", "hi"))
	require.ErrorIs(t, err, errors.ErrMalformedMessage)
}

func TestReader_Reads_Consecutive_Frames(t *testing.T) {
	req := require.New(t)
	var stream bytes.Buffer
	messages := []domain.Message{
		domain.NewMessage(domain.Connect, "alice", ""),
		domain.NewMessage(domain.Text, "alice", "first"),
		domain.NewUserList([]string{"alice", "bob"}),
	}
	for _, m := range messages {
		req.NoError(WriteFrame(&stream, m))
	}

	reader := NewReader(&stream, DefaultMaxFrameSize)
	for _, expected := range messages {
		got, err := reader.Read()
		req.NoError(err)
		req.Equal(expected.Kind(), got.Kind())
		req.Equal(expected.Content(), got.Content())
	}

	// Then the stream ends cleanly on a frame boundary
	_, err := reader.Read()
	req.ErrorIs(err, io.EOF)
}

func TestReader_Rejects_Oversized_Frame(t *testing.T) {
	req := require.New(t)
	var stream bytes.Buffer
	req.NoError(WriteFrame(&stream, domain.NewMessage(domain.Text, "alice", string(make([]byte, 100)))))

	_, err := NewReader(&stream, 64).Read()
	req.ErrorIs(err, errors.ErrMalformedMessage)
}

func TestReader_Truncated_Stream_Is_Malformed(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(domain.NewMessage(domain.Text, "alice", "hello"))
	req.NoError(err)

	_, err = NewReader(bytes.NewReader(frame[:len(frame)-1]), DefaultMaxFrameSize).Read()
	req.ErrorIs(err, errors.ErrMalformedMessage)

	_, err = NewReader(bytes.NewReader(frame[:2]), DefaultMaxFrameSize).Read()
	req.ErrorIs(err, errors.ErrMalformedMessage)
	req.False(stderrors.Is(err, io.EOF))
}
