package main

import (
	"chat-relay/domain"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const timeLayout = "15:04:05"

// View renders relay messages on a terminal and remembers the last user list.
type View struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	users   []string
}

func NewView(out io.Writer, colours bool) *View {
	return &View{out: out, colours: colours}
}

// Show is the client message handler.
func (v *View) Show(msg domain.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	stamp := msg.Timestamp().Local().Format(timeLayout)
	switch msg.Kind() {
	case domain.Text:
		fmt.Fprintf(v.out, "[%s] %s: %s\n", stamp, v.paint(color.FgCyan, msg.Sender()), msg.Content())
	case domain.UserList:
		v.users = msg.Usernames()
	case domain.UserJoined:
		fmt.Fprintln(v.out, v.paint(color.FgGreen, fmt.Sprintf("[%s] %s joined", stamp, msg.Content())))
	case domain.UserLeft:
		fmt.Fprintln(v.out, v.paint(color.FgYellow, fmt.Sprintf("[%s] %s left", stamp, msg.Content())))
	case domain.Disconnect:
		fmt.Fprintln(v.out, v.paint(color.FgRed, "Disconnected: "+msg.Content()))
	}
}

func (v *View) Info(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, v.paint(color.FgGray, line))
}

// Users prints the online users as a table.
func (v *View) Users() {
	v.mu.Lock()
	defer v.mu.Unlock()
	users := slices.Clone(v.users)
	slices.Sort(users)

	table := tablewriter.NewWriter(v.out)
	table.SetHeader([]string{"#", "Online"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, user := range users {
		table.Append([]string{fmt.Sprint(i + 1), user})
	}
	table.SetFooter([]string{"", fmt.Sprintf("%d online", len(users))})
	table.Render()
}

func (v *View) paint(c color.Color, s string) string {
	if !v.colours {
		return s
	}
	return c.Render(s)
}
