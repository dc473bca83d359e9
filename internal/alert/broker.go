// Package alert is the single confirmation slot shared by every part of the
// client. Stores as well as views can ask the user to confirm something
// without knowing which surface renders the dialog.
package alert

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Ticket identifies one confirmation request. A decision carrying a ticket
// that is no longer current is ignored.
type Ticket uint64

type Decision int

const (
	DecisionConfirm Decision = iota
	DecisionDismiss
)

// Callback runs when the user confirms the request.
type Callback func() error

// Request is a snapshot of the slot.
type Request struct {
	Ticket  Ticket
	Title   string
	Message string
	Open    bool
}

// CallbackError wraps an error (or panic) raised by a confirmation callback.
type CallbackError struct {
	Ticket Ticket
	Err    error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("confirmation %d callback: %v", e.Ticket, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

type Broker struct {
	log *slog.Logger

	mu        sync.Mutex
	seq       Ticket
	cur       Request
	onConfirm Callback
	subs      map[int]chan Request
	nextSub   int
	closed    bool
}

func New(log *slog.Logger) *Broker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Broker{log: log, subs: map[int]chan Request{}}
}

// Open fills the slot, replacing whatever request was open. A nil callback
// makes the request purely informational.
func (b *Broker) Open(title, message string, onConfirm Callback) Ticket {
	if onConfirm == nil {
		onConfirm = func() error { return nil }
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	if b.cur.Open {
		b.log.Debug("replacing open confirmation", "ticket", b.cur.Ticket, "title", b.cur.Title)
	}
	b.seq++
	b.cur = Request{
		Ticket:  b.seq,
		Title:   strings.TrimSpace(title),
		Message: message,
		Open:    true,
	}
	b.onConfirm = onConfirm
	b.publishLocked()
	t := b.cur.Ticket
	b.mu.Unlock()
	return t
}

// Close dismisses the current request without running its callback.
func (b *Broker) Close() {
	b.mu.Lock()
	if !b.cur.Open {
		b.mu.Unlock()
		return
	}
	b.clearLocked()
	b.publishLocked()
	b.mu.Unlock()
}

// Confirm runs the current callback and then releases the slot, even when the
// callback fails or panics. A request opened by the callback itself is left
// in place.
func (b *Broker) Confirm() error {
	b.mu.Lock()
	if !b.cur.Open {
		b.mu.Unlock()
		return nil
	}
	ticket := b.cur.Ticket
	cb := b.onConfirm
	b.mu.Unlock()

	return b.run(ticket, cb)
}

// Resolve applies a decision to the request identified by t. It reports
// whether t was still the current request.
func (b *Broker) Resolve(t Ticket, d Decision) (bool, error) {
	b.mu.Lock()
	if !b.cur.Open || b.cur.Ticket != t {
		b.mu.Unlock()
		b.log.Debug("stale confirmation decision ignored", "ticket", t)
		return false, nil
	}
	cb := b.onConfirm
	b.mu.Unlock()

	if d == DecisionDismiss {
		b.release(t)
		return true, nil
	}
	return true, b.run(t, cb)
}

func (b *Broker) run(ticket Ticket, cb Callback) (err error) {
	defer b.release(ticket)
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Ticket: ticket, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			b.log.Error("confirmation callback failed", "ticket", ticket, "err", err)
		}
	}()
	if cb == nil {
		return nil
	}
	if cbErr := cb(); cbErr != nil {
		return &CallbackError{Ticket: ticket, Err: cbErr}
	}
	return nil
}

// release clears the slot if it still holds ticket.
func (b *Broker) release(ticket Ticket) {
	b.mu.Lock()
	if !b.cur.Open || b.cur.Ticket != ticket {
		b.mu.Unlock()
		return
	}
	b.clearLocked()
	b.publishLocked()
	b.mu.Unlock()
}

func (b *Broker) clearLocked() {
	b.cur = Request{Ticket: b.cur.Ticket}
	b.onConfirm = nil
}

func (b *Broker) Current() Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur
}

// Subscribe returns a channel receiving the latest slot state after every
// change. Slow readers only see the most recent state.
func (b *Broker) Subscribe() (<-chan Request, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Request, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Broker) publishLocked() {
	r := b.cur
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r:
		default:
		}
	}
}

// Teardown clears the slot and closes every subscription.
func (b *Broker) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.clearLocked()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
