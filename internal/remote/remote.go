// Package remote propagates committed records to a shared backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"questguild/internal/apperr"
)

// Record kinds published after a local commit.
const (
	KindTaskCreated       = "task.created"
	KindTaskUpdated       = "task.updated"
	KindTaskCompleted     = "task.completed"
	KindTaskDeleted       = "task.deleted"
	KindCharacterUpdated  = "character.updated"
	KindBossUpdated       = "boss.updated"
	KindEncounterFinished = "encounter.finished"
	KindEquipmentUpdated  = "equipment.updated"
	KindGuildUpdated      = "guild.updated"
	KindMissionUpdated    = "mission.updated"
)

// Record is one created or updated entity.
type Record struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	EntityID    int64     `json:"entity_id"`
	CharacterID int64     `json:"character_id,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	At          time.Time `json:"at"`
}

// NewRecord stamps a record with a fresh id.
func NewRecord(kind string, entityID, characterID int64, payload any, at time.Time) Record {
	return Record{
		ID:          uuid.NewString(),
		Kind:        kind,
		EntityID:    entityID,
		CharacterID: characterID,
		Payload:     payload,
		At:          at.UTC(),
	}
}

// Publisher delivers records. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Nop drops every record.
type Nop struct{}

func (Nop) Publish(context.Context, Record) error { return nil }

// HTTPPublisher POSTs each record as JSON to a sync endpoint.
type HTTPPublisher struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPPublisher(url, token string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPublisher{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: timeout},
	}
}

// New returns an HTTPPublisher for url, or Nop when url is empty.
func New(url, token string, timeout time.Duration) Publisher {
	if strings.TrimSpace(url) == "" {
		return Nop{}
	}
	return NewHTTPPublisher(url, token, timeout)
}

func (p *HTTPPublisher) Publish(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return apperr.Wrap(apperr.CodeSyncFailure, "encode sync record", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.CodeSyncFailure, "build sync request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.ID)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeSyncFailure, "send sync record", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Wrap(apperr.CodeSyncFailure, "sync rejected",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return nil
}
