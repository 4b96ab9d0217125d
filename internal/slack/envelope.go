package slack

import (
	"encoding/json"
	"fmt"
)

// EventKind is the validated discriminant of an inbound webhook payload.
// Raw JSON is converted into exactly one of these before any business logic
// sees it.
type EventKind int

const (
	// KindIgnored covers everything the handler deliberately drops: bot
	// echoes, message edits, threaded replies and event types it does not
	// handle. These are acknowledged without side effects.
	KindIgnored EventKind = iota
	// KindURLVerification is the handshake Slack sends when the webhook URL
	// is configured; the challenge must be echoed verbatim.
	KindURLVerification
	// KindMessage is a plain user message the handler should process.
	KindMessage
)

// Envelope is the outer webhook payload.
type Envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     Event  `json:"event,omitempty"`
}

// Event is the inner event of an event_callback envelope.
type Event struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	BotID       string `json:"bot_id,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

// DecodeEnvelope parses a verified raw body into an Envelope.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode slack event: %w", err)
	}
	return &env, nil
}

// Kind classifies the envelope. Edits, bot-originated messages and threaded
// replies are ignored so the same check-in is never processed twice.
func (e *Envelope) Kind() EventKind {
	switch e.Type {
	case "url_verification":
		return KindURLVerification
	case "event_callback":
		ev := e.Event
		if ev.Type != "message" {
			return KindIgnored
		}
		if ev.BotID != "" || ev.Subtype != "" || ev.ThreadTS != "" {
			return KindIgnored
		}
		return KindMessage
	default:
		return KindIgnored
	}
}
