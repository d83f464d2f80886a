package main

import (
	"bytes"
	"chat-relay/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestView_Show_Text(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	view := NewView(&out, false)
	at := time.Date(2024, 5, 1, 15, 4, 5, 0, time.Local)

	view.Show(domain.NewMessageAt(domain.Text, "bob", "hi", at))

	req.Equal("[15:04:05] bob: hi\n", out.String())
}

func TestView_Show_Presence(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	view := NewView(&out, false)

	view.Show(domain.NewUserJoined("carol"))
	view.Show(domain.NewUserLeft("carol"))
	view.Show(domain.NewDisconnectReason("server shutting down"))

	req.Contains(out.String(), "carol joined")
	req.Contains(out.String(), "carol left")
	req.Contains(out.String(), "Disconnected: server shutting down")
}

func TestView_Users_Table(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	view := NewView(&out, false)

	// the user list itself prints nothing
	view.Show(domain.NewUserList([]string{"bob", "alice"}))
	req.Empty(out.String())

	view.Users()

	table := out.String()
	req.Contains(table, "alice")
	req.Contains(table, "bob")
	req.Contains(strings.ToUpper(table), "2 ONLINE")
	req.Less(bytes.Index(out.Bytes(), []byte("alice")), bytes.Index(out.Bytes(), []byte("bob")))
}
