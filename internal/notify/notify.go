// Package notify pushes game events to connected clients.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeTaskCompleted    = "task_completed"
	TypeLevelUp          = "level_up"
	TypeBossAvailable    = "boss_available"
	TypeEncounterEnded   = "encounter_ended"
	TypeGuildInvite      = "guild_invite"
	TypeGuildJoined      = "guild_joined"
	TypeGuildLeft        = "guild_left"
	TypeMissionStarted   = "mission_started"
	TypeMissionCompleted = "mission_completed"
	TypeChatMessage      = "chat_message"
)

// Event is a fire-and-forget notification. A zero GuildID addresses the
// character alone.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	GuildID     int64     `json:"guild_id,omitempty"`
	CharacterID int64     `json:"character_id,omitempty"`
	Data        any       `json:"data,omitempty"`
	At          time.Time `json:"at"`
}

func NewEvent(typ string, guildID, characterID int64, data any, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		GuildID:     guildID,
		CharacterID: characterID,
		Data:        data,
		At:          at.UTC(),
	}
}

// Notifier delivers events without waiting for confirmation.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}
