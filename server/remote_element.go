package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"Toonbeat/logger"
)

// ErrElementClosed is returned by plays pending or issued after the renderer
// went away.
var ErrElementClosed = errors.New("remote element closed")

// RemoteElement is a player.Element living in the renderer. Commands are
// fire-and-forget except Play, which waits for the renderer's ack.
type RemoteElement struct {
	send func(OutboundMessage) error

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan error
	closed  bool
}

func NewRemoteElement(send func(OutboundMessage) error) *RemoteElement {
	return &RemoteElement{send: send, pending: make(map[uint64]chan error)}
}

func (e *RemoteElement) command(c Command) {
	if err := e.send(OutboundMessage{Type: MsgCommand, Command: &c}); err != nil {
		logger.Debug("element command dropped", logger.String("op", c.Op), logger.ErrorField(err))
	}
}

func (e *RemoteElement) SetSource(uri string) { e.command(Command{Op: "setSource", Src: uri}) }
func (e *RemoteElement) Load()                { e.command(Command{Op: "load"}) }
func (e *RemoteElement) Pause()               { e.command(Command{Op: "pause"}) }
func (e *RemoteElement) Seek(seconds float64) { e.command(Command{Op: "seek", Value: seconds}) }
func (e *RemoteElement) SetVolume(v float64)  { e.command(Command{Op: "volume", Value: v}) }
func (e *RemoteElement) SetMuted(muted bool)  { e.command(Command{Op: "mute", Muted: muted}) }

// Play asks the renderer to start playback and blocks until it acks, ctx
// ends or the element is closed.
func (e *RemoteElement) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrElementClosed
	}
	e.seq++
	seq := e.seq
	ch := make(chan error, 1)
	e.pending[seq] = ch
	e.mu.Unlock()

	if err := e.send(OutboundMessage{Type: MsgCommand, Command: &Command{Op: "play", Seq: seq}}); err != nil {
		e.drop(seq)
		return fmt.Errorf("send play: %w", err)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		e.drop(seq)
		return ctx.Err()
	}
}

// Ack resolves the play with sequence seq. A non-empty message is the
// renderer's rejection. Late or unknown acks are ignored.
func (e *RemoteElement) Ack(seq uint64, message string) bool {
	e.mu.Lock()
	ch, ok := e.pending[seq]
	delete(e.pending, seq)
	e.mu.Unlock()
	if !ok {
		return false
	}
	if message != "" {
		ch <- errors.New(message)
	} else {
		ch <- nil
	}
	return true
}

// Close fails every pending play.
func (e *RemoteElement) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for seq, ch := range e.pending {
		ch <- ErrElementClosed
		delete(e.pending, seq)
	}
}

func (e *RemoteElement) drop(seq uint64) {
	e.mu.Lock()
	delete(e.pending, seq)
	e.mu.Unlock()
}
