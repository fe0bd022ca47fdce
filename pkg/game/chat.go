package game

import (
	"context"
	"time"

	"github.com/temcrew/temserver/pkg/events"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
)

// SendChat appends a message to the room history and broadcasts it. A human
// message hooks the AI peer so it can decide whether to reply.
func (e *Engine) SendChat(ctx context.Context, roomID string, actor models.Actor, body string, ttsRequested bool) error {
	if body == "" {
		return nil
	}
	return e.run(ctx, roomID, func(r *room.Room) error {
		msg := r.AppendChat(models.ChatMessage{
			SenderName: actor.Name,
			SenderRole: actor.Role,
			Body:       body,
			Timestamp:  time.Now(),
			IsAI:       actor.IsAI,
			EnableTTS:  ttsRequested,
		})
		r.AppendLog(actor, "chat_message", map[string]any{"message": body})
		e.B.Broadcast(roomID, events.EventChatMessage, events.NewChatMessagePayload(msg))

		notifyPeerAgent(r, actor, func(a room.AgentNotifier) { a.OnChatMessage(msg) })
		return nil
	})
}
