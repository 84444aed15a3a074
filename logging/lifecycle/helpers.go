package lifecycle

import (
	"context"

	"garden-siege/server/logging"
)

const (
	// EventMatchStarted is emitted when both transports report connected.
	EventMatchStarted logging.EventType = "lifecycle.match_started"
	// EventMatchEnded is emitted once per match with the outcome.
	EventMatchEnded logging.EventType = "lifecycle.match_ended"
	// EventPeerDisconnected is emitted when the remote participant drops mid-match.
	EventPeerDisconnected logging.EventType = "lifecycle.peer_disconnected"
)

type OutcomePayload struct {
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func MatchStarted(ctx context.Context, pub logging.Publisher, session logging.EntityRef) {
	publish(ctx, pub, EventMatchStarted, session, OutcomePayload{})
}

func MatchEnded(ctx context.Context, pub logging.Publisher, session logging.EntityRef, payload OutcomePayload) {
	publish(ctx, pub, EventMatchEnded, session, payload)
}

func PeerDisconnected(ctx context.Context, pub logging.Publisher, session logging.EntityRef, payload OutcomePayload) {
	publish(ctx, pub, EventPeerDisconnected, session, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, actor logging.EntityRef, payload OutcomePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}
