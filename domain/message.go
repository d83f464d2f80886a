// Package domain contains core concepts of the chat relay.
// This file defines the protocol Message and its kinds.
// Messages are immutable values: build them with NewMessage and never mutate them.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// SystemSender is the reserved sender label of server-originated messages.
const SystemSender = "Server"

// UserListDelimiter separates usernames in USER_LIST content. It is forbidden inside usernames.
const UserListDelimiter = ","

type Kind uint8

const (
	Connect Kind = iota
	Disconnect
	Text
	UserList
	UserJoined
	UserLeft
)

var kindNames = map[Kind]string{
	Connect:    "CONNECT",
	Disconnect: "DISCONNECT",
	Text:       "TEXT",
	UserList:   "USER_LIST",
	UserJoined: "USER_JOINED",
	UserLeft:   "USER_LEFT",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// Message represents one protocol message exchanged between a client and the relay.
type Message struct {
	kind      Kind
	sender    string
	content   string
	timestamp time.Time
}

// NewMessage stamps the message with the current time, truncated to the millisecond
// precision carried on the wire.
func NewMessage(kind Kind, sender, content string) Message {
	return NewMessageAt(kind, sender, content, time.Now())
}

func NewMessageAt(kind Kind, sender, content string, at time.Time) Message {
	return Message{
		kind:      kind,
		sender:    sender,
		content:   content,
		timestamp: time.UnixMilli(at.UnixMilli()).UTC(),
	}
}

func (m Message) Kind() Kind           { return m.kind }
func (m Message) Sender() string       { return m.sender }
func (m Message) Content() string      { return m.content }
func (m Message) Timestamp() time.Time { return m.timestamp }

func (m Message) String() string {
	return fmt.Sprintf("Message{kind=%s, sender=%q, content=%q}", m.kind, m.sender, m.content)
}

// NewUserList joins the usernames into a USER_LIST message sent by the system.
func NewUserList(usernames []string) Message {
	return NewMessage(UserList, SystemSender, strings.Join(usernames, UserListDelimiter))
}

// Usernames splits USER_LIST content back into the online usernames.
// It returns nil for any other kind.
func (m Message) Usernames() []string {
	if m.kind != UserList {
		return nil
	}
	return lo.Compact(strings.Split(m.content, UserListDelimiter))
}

func NewUserJoined(username string) Message {
	return NewMessage(UserJoined, SystemSender, username)
}

func NewUserLeft(username string) Message {
	return NewMessage(UserLeft, SystemSender, username)
}

// NewDisconnectReason is the only in-band error signal available to a client.
func NewDisconnectReason(reason string) Message {
	return NewMessage(Disconnect, SystemSender, reason)
}
