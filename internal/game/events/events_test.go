package events

import (
	"encoding/json"
	"testing"

	"github.com/blankparty/hackbox/internal/models"
)

func TestNewEnvelope(t *testing.T) {
	env, err := New("ABC123", EventTypeTimerUpdate, TimerUpdatePayload{TimeRemaining: 42})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if env.ID == "" || env.Timestamp.IsZero() {
		t.Errorf("envelope missing ID or timestamp: %+v", env)
	}
	if env.SessionID != "ABC123" || env.Type != EventTypeTimerUpdate {
		t.Errorf("envelope = %+v", env)
	}

	var payload TimerUpdatePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.TimeRemaining != 42 {
		t.Errorf("TimeRemaining = %d, want 42", payload.TimeRemaining)
	}
}

func TestEnvelopeOmitsEmptySessionID(t *testing.T) {
	env, err := New("", EventTypePlayersUpdated, PlayersUpdatedPayload{})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if _, present := fields["session_id"]; present {
		t.Error("empty session_id serialized for publish-to-all envelope")
	}
}

func TestSnapshotPlayers(t *testing.T) {
	players := []*models.Player{
		{ID: "p1", Nickname: "alice", Score: 200},
		{ID: "p2", Nickname: "bob", Score: 0},
	}
	snapshots := SnapshotPlayers(players)
	if len(snapshots) != 2 {
		t.Fatalf("len = %d, want 2", len(snapshots))
	}
	if snapshots[0] != (PlayerSnapshot{ID: "p1", Nickname: "alice", Score: 200}) {
		t.Errorf("snapshots[0] = %+v", snapshots[0])
	}

	// Mutating the snapshot must not touch the live roster.
	snapshots[0].Score = 999
	if players[0].Score != 200 {
		t.Error("snapshot aliases the live player")
	}
}

func TestSessionSnapshotStatusField(t *testing.T) {
	raw, err := json.Marshal(SessionSnapshot{ID: "ABC123", Phase: models.PhaseVoting})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	// Clients read the phase from a field named status.
	if fields["status"] != "voting" {
		t.Errorf("status = %v, want voting", fields["status"])
	}
}
