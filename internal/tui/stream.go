package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/techtouch/internal/chat"
)

// streamEventMsg carries one chat event from a running request
type streamEventMsg struct {
	target tab
	event  chat.Event
	ch     <-chan tea.Msg
}

// streamDoneMsg is the last message of a request
type streamDoneMsg struct {
	target tab
	err    error
}

// startStream runs fn in a goroutine and turns its events into tea messages.
// The returned command delivers the first message; each streamEventMsg
// re-arms the listener through waitForStream.
func startStream(ctx context.Context, target tab, fn func(ctx context.Context, sink chat.Sink) error) tea.Cmd {
	ch := make(chan tea.Msg, 16)

	go func() {
		defer close(ch)
		sink := func(e chat.Event) {
			select {
			case ch <- streamEventMsg{target: target, event: e, ch: ch}:
			case <-ctx.Done():
			}
		}
		err := fn(ctx, sink)
		select {
		case ch <- streamDoneMsg{target: target, err: err}:
		case <-ctx.Done():
		}
	}()

	return waitForStream(ch)
}

// waitForStream returns a command that reads the next stream message
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
