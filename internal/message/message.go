// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package message routes effect text to users and rooms.
//
// Text carries inline markup such as <ansi fg="buff-text">...</ansi>. This
// package never interprets it; the renderer on the session side does.
package message

import (
	"fmt"
	"time"
)

// Kind identifies the destination of a message.
type Kind uint8

// Destination kinds.
const (
	KindUser Kind = iota
	KindRoom
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Message is one piece of text bound for a user or a room.
type Message struct {
	Kind      Kind
	Target    string // user ID or room ID
	Text      string
	Exclude   string // user ID skipped by a room broadcast
	Timestamp time.Time
}

// Sink delivers effect text. Both methods are fire-and-forget: delivery to a
// user who is not connected is dropped silently and never reported.
type Sink interface {
	SendToUser(userID, text string)
	SendToRoom(roomID, text string, exclude ...string)
}

// Occupants resolves the users present in a room.
type Occupants interface {
	Occupants(roomID string) []string
}

// Tag wraps content in color markup for the given style alias.
func Tag(style, content string) string {
	return fmt.Sprintf(`<ansi fg="%s">%s</ansi>`, style, content)
}
