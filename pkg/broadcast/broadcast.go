// Package broadcast defines the client broadcaster boundary named as
// an external collaborator in §1: the layer that multiplexes one
// outgoing message per subscriber. This package supplies the
// interface BundleController drives plus an in-memory implementation
// for tests and the demo harness.
package broadcast

import (
	"context"
	"sync"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

// MessageType names the wire message kinds (§6, §7).
type MessageType string

const (
	MessageDocUserAction MessageType = "docUserAction"
	MessageNeedReload    MessageType = "needReload"
)

// ActionGroup is the action bundle plus descriptive metadata
// sendDocUpdateForBundle broadcasts (§6). ActionSummary and Desc are
// suppressed by filterActionGroup for viewers who cannot read
// everything.
type ActionGroup struct {
	DocActions    []*docmodel.DocAction
	ActionSummary any
	Desc          string
	FromSelf      bool
}

// Clone returns a shallow copy safe to mutate (e.g. to blank
// ActionSummary/Desc for one subscriber) without touching the
// original broadcast to other subscribers.
func (ag *ActionGroup) Clone() *ActionGroup {
	if ag == nil {
		return nil
	}
	out := *ag
	return &out
}

// Message is one outgoing broadcast to a single subscriber.
type Message struct {
	Type        MessageType
	DocActions  []*docmodel.DocAction
	ActionGroup *ActionGroup
	Reason      string // set on MessageNeedReload
}

// Broadcaster delivers one Message to one subscriber.
type Broadcaster interface {
	Send(ctx context.Context, sessionID string, msg Message) error
}

// InMemoryBroadcaster records every message sent, per session, for
// tests and the demo harness.
type InMemoryBroadcaster struct {
	mu    sync.Mutex
	inbox map[string][]Message
}

func NewInMemoryBroadcaster() *InMemoryBroadcaster {
	return &InMemoryBroadcaster{inbox: map[string][]Message{}}
}

func (b *InMemoryBroadcaster) Send(_ context.Context, sessionID string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox[sessionID] = append(b.inbox[sessionID], msg)
	return nil
}

// Inbox returns the messages delivered to sessionID, in order.
func (b *InMemoryBroadcaster) Inbox(sessionID string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.inbox[sessionID]...)
}

// Reset clears every recorded inbox.
func (b *InMemoryBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbox = map[string][]Message{}
}
