// Package ipc sends notifications to a parent process over a pipe.
//
// A message is a command and its parameters joined by ASCII record
// separators and terminated by an ASCII group separator:
//
//	command RS param [RS param...] GS
package ipc

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	recordSeparator = "\x1e"
	groupSeparator  = "\x1d"
)

// LinksGroupName is the command announcing the name of the links group.
const LinksGroupName = "lh5_links_group_name"

// Notifier sends fire-and-forget messages.
type Notifier interface {
	Send(command string, params ...string) error
}

// Message encodes a message without its end marker.
func Message(command string, params ...string) string {
	return strings.Join(append([]string{command}, params...), recordSeparator)
}

// Pipe is a Notifier writing to an io.Writer, typically the write end of
// a pipe inherited from the parent.
type Pipe struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPipe returns a Pipe writing to w.
func NewPipe(w io.Writer) *Pipe {
	return &Pipe{w: w}
}

// OpenFd returns a Pipe writing to an inherited file descriptor. A negative
// fd yields a nil Pipe, which discards messages.
func OpenFd(fd int) *Pipe {
	if fd < 0 {
		return nil
	}
	return NewPipe(os.NewFile(uintptr(fd), fmt.Sprintf("ipc-%d", fd)))
}

// Send writes one message. A nil Pipe discards it.
func (p *Pipe) Send(command string, params ...string) error {
	if p == nil {
		return nil
	}

	msg := Message(command, params...) + groupSeparator

	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := io.WriteString(p.w, msg)
	if err != nil {
		return fmt.Errorf("ipc message transmit failed: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("ipc message not fully transmitted, missing %d bytes", len(msg)-n)
	}
	return nil
}

// Discard is a Notifier that drops every message.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Send(string, ...string) error { return nil }

// Recorder is a Notifier that keeps the encoded messages in memory.
type Recorder struct {
	mu       sync.Mutex
	Messages []string
}

// Send implements Notifier.
func (r *Recorder) Send(command string, params ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message(command, params...))
	return nil
}

// Parse splits a stream of messages into commands and parameters. A
// trailing incomplete message is ignored.
func Parse(stream string) [][]string {
	var out [][]string
	parts := strings.Split(stream, groupSeparator)
	for _, p := range parts[:len(parts)-1] {
		out = append(out, strings.Split(p, recordSeparator))
	}
	return out
}
