// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package messagetest provides test helpers for message routing.
package messagetest

import (
	"sync"

	"github.com/holomush/buffd/internal/message"
)

// Recorder is a Sink that keeps every message it is handed.
type Recorder struct {
	mu       sync.Mutex
	messages []message.Message
}

// Compile-time interface check.
var _ message.Sink = (*Recorder)(nil)

// SendToUser records a user message.
func (r *Recorder) SendToUser(userID, text string) {
	r.record(message.Message{Kind: message.KindUser, Target: userID, Text: text})
}

// SendToRoom records a room message.
func (r *Recorder) SendToRoom(roomID, text string, exclude ...string) {
	msg := message.Message{Kind: message.KindRoom, Target: roomID, Text: text}
	if len(exclude) > 0 {
		msg.Exclude = exclude[0]
	}
	r.record(msg)
}

func (r *Recorder) record(msg message.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]message.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ToUser returns the texts sent to userID, in order.
func (r *Recorder) ToUser(userID string) []string {
	return r.texts(message.KindUser, userID)
}

// ToRoom returns the texts broadcast to roomID, in order.
func (r *Recorder) ToRoom(roomID string) []string {
	return r.texts(message.KindRoom, roomID)
}

func (r *Recorder) texts(kind message.Kind, target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.messages {
		if m.Kind == kind && m.Target == target {
			out = append(out, m.Text)
		}
	}
	return out
}

// Reset forgets all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
