package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/blankparty/hackbox/internal/game"
	"github.com/blankparty/hackbox/internal/game/events"
	"github.com/blankparty/hackbox/internal/models"
)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	joinErr error
	getErr  error
	calls   []string
}

func (f *fakeEngine) CreateSession(_ context.Context, name string) string {
	f.calls = append(f.calls, "create:"+name)
	return "ABC123"
}

func (f *fakeEngine) JoinSession(_ context.Context, sessionID, playerID, nickname string) (*models.Player, error) {
	f.calls = append(f.calls, fmt.Sprintf("join:%s:%s:%s", sessionID, playerID, nickname))
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return &models.Player{ID: playerID, Nickname: nickname, SessionID: sessionID}, nil
}

func (f *fakeEngine) StartGame(_ context.Context, sessionID string) {
	f.calls = append(f.calls, "start:"+sessionID)
}

func (f *fakeEngine) SubmitAnswer(_ context.Context, sessionID, playerID, text string) {
	f.calls = append(f.calls, fmt.Sprintf("answer:%s:%s:%s", sessionID, playerID, text))
}

func (f *fakeEngine) SubmitVote(_ context.Context, sessionID, voterID, answerOwnerID string) {
	f.calls = append(f.calls, fmt.Sprintf("vote:%s:%s:%s", sessionID, voterID, answerOwnerID))
}

func (f *fakeEngine) GetSession(_ context.Context, sessionID string) (*events.SessionSnapshot, error) {
	f.calls = append(f.calls, "get:"+sessionID)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &events.SessionSnapshot{ID: sessionID, Phase: models.PhaseWaiting}, nil
}

func (f *fakeEngine) Disconnect(_ context.Context, playerID string) {
	f.calls = append(f.calls, "disconnect:"+playerID)
}

func newTestHandler(engine Engine) (*MessageHandler, *ConnectionManager) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	return NewMessageHandler(engine, cm), cm
}

func testConn(id string) *Connection {
	return &Connection{ID: id, Send: make(chan []byte, 8), done: make(chan struct{})}
}

func frameJSON(t *testing.T, typ, requestID string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(Frame{Type: typ, RequestID: requestID, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func readAck(t *testing.T, conn *Connection) Frame {
	t.Helper()
	select {
	case data := <-conn.Send:
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("ack is not a frame: %v", err)
		}
		if frame.Type != MsgAck {
			t.Fatalf("frame type = %q, want ack", frame.Type)
		}
		return frame
	default:
		t.Fatal("no ack on connection")
		return Frame{}
	}
}

func TestHandleCreateSession(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(engine)
	conn := testConn("p1")

	h.Handle(conn, frameJSON(t, MsgCreateSession, "req-1", CreateSessionData{Name: "reception"}))

	frame := readAck(t, conn)
	if frame.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", frame.RequestID)
	}
	var ack CreateSessionAck
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Success || ack.SessionID != "ABC123" {
		t.Errorf("ack = %+v", ack)
	}
	if len(engine.calls) != 1 || engine.calls[0] != "create:reception" {
		t.Errorf("engine calls = %v", engine.calls)
	}
}

func TestHandleJoinSession(t *testing.T) {
	engine := &fakeEngine{}
	h, cm := newTestHandler(engine)
	conn := testConn("p1")

	h.Handle(conn, frameJSON(t, MsgJoinSession, "req-2", JoinSessionData{SessionID: "ABC123", Nickname: "alice"}))

	frame := readAck(t, conn)
	var ack JoinSessionAck
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Success || ack.Player == nil || ack.Player.Nickname != "alice" {
		t.Errorf("ack = %+v", ack)
	}

	// The connection ID is the player ID, and the connection stays
	// subscribed to the session channel.
	if engine.calls[0] != "join:ABC123:p1:alice" {
		t.Errorf("engine calls = %v", engine.calls)
	}
	if _, channels := cm.Stats(); channels != 1 {
		t.Errorf("active channels = %d, want 1", channels)
	}
}

// channelSamplingBroadcaster records how many connections are subscribed to
// the session channel at the moment each event is published.
type channelSamplingBroadcaster struct {
	cm          *ConnectionManager
	subscribers []int
}

func (b *channelSamplingBroadcaster) PublishToSession(_ context.Context, sessionID string, _ events.EventType, _ any) {
	b.cm.mu.RLock()
	b.subscribers = append(b.subscribers, len(b.cm.sessionChannels[sessionID]))
	b.cm.mu.RUnlock()
}

func (b *channelSamplingBroadcaster) PublishToAll(context.Context, events.EventType, any) {}

func TestJoinSubscribesBeforeRosterBroadcast(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sampler := &channelSamplingBroadcaster{cm: cm}
	engine := game.NewEngine(game.NewRegistry(), nil, game.NopRecorder{}, sampler)
	h := NewMessageHandler(engine, cm)

	sessionID := engine.CreateSession(context.Background(), "party")
	conn := testConn("p1")
	h.Handle(conn, frameJSON(t, MsgJoinSession, "req-1", JoinSessionData{SessionID: sessionID, Nickname: "alice"}))
	readAck(t, conn)

	// The joiner must already be in the channel when its own roster
	// broadcast goes out, or whether it sees itself depends on scheduling.
	if len(sampler.subscribers) != 1 || sampler.subscribers[0] != 1 {
		t.Errorf("subscribers at publish time = %v, want [1]", sampler.subscribers)
	}
}

func TestHandleJoinSessionErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"session not found", game.ErrSessionNotFound, "Session not found"},
		{"nickname taken", game.ErrNicknameTaken, "Nickname already taken"},
		{"unexpected", errors.New("boom"), "Internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, cm := newTestHandler(&fakeEngine{joinErr: tt.err})
			conn := testConn("p1")

			h.Handle(conn, frameJSON(t, MsgJoinSession, "req-3", JoinSessionData{SessionID: "ABC123", Nickname: "alice"}))

			frame := readAck(t, conn)
			var ack JoinSessionAck
			if err := json.Unmarshal(frame.Data, &ack); err != nil {
				t.Fatal(err)
			}
			if ack.Success || ack.Error != tt.wantMsg {
				t.Errorf("ack = %+v, want error %q", ack, tt.wantMsg)
			}
			if _, channels := cm.Stats(); channels != 0 {
				t.Error("failed join still subscribed the connection")
			}
		})
	}
}

func TestHandleGameplayFrames(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(engine)
	conn := testConn("p1")

	h.Handle(conn, frameJSON(t, MsgStartGame, "", StartGameData{SessionID: "ABC123"}))
	h.Handle(conn, frameJSON(t, MsgSubmitAnswer, "", SubmitAnswerData{SessionID: "ABC123", Answer: "the cake"}))
	h.Handle(conn, frameJSON(t, MsgSubmitVote, "", SubmitVoteData{SessionID: "ABC123", AnswerID: "p2"}))

	want := []string{
		"start:ABC123",
		"answer:ABC123:p1:the cake",
		"vote:ABC123:p1:p2",
	}
	if len(engine.calls) != len(want) {
		t.Fatalf("engine calls = %v, want %v", engine.calls, want)
	}
	for i := range want {
		if engine.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, engine.calls[i], want[i])
		}
	}

	// Fire-and-forget frames get no ack.
	select {
	case data := <-conn.Send:
		t.Errorf("unexpected frame on connection: %s", data)
	default:
	}
}

func TestHandleGetSession(t *testing.T) {
	h, _ := newTestHandler(&fakeEngine{})
	conn := testConn("p1")

	h.Handle(conn, frameJSON(t, MsgGetSession, "req-4", GetSessionData{SessionID: "ABC123"}))

	frame := readAck(t, conn)
	var ack GetSessionAck
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Success || ack.Session == nil || ack.Session.ID != "ABC123" {
		t.Errorf("ack = %+v", ack)
	}

	h2, _ := newTestHandler(&fakeEngine{getErr: game.ErrSessionNotFound})
	conn2 := testConn("p2")
	h2.Handle(conn2, frameJSON(t, MsgGetSession, "req-5", GetSessionData{SessionID: "NOPE99"}))

	frame2 := readAck(t, conn2)
	var ack2 GetSessionAck
	if err := json.Unmarshal(frame2.Data, &ack2); err != nil {
		t.Fatal(err)
	}
	if ack2.Success || ack2.Error != "Session not found" {
		t.Errorf("ack = %+v", ack2)
	}
}

func TestHandleDropsBadFrames(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(engine)
	conn := testConn("p1")

	h.Handle(conn, []byte("not json"))
	h.Handle(conn, []byte(`{"type":"no-such-type"}`))
	h.Handle(conn, []byte(`{"type":"submit-answer","data":"not an object"}`))

	if len(engine.calls) != 0 {
		t.Errorf("engine calls = %v, want none", engine.calls)
	}
	select {
	case data := <-conn.Send:
		t.Errorf("unexpected frame on connection: %s", data)
	default:
	}
}

func TestAckError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{game.ErrSessionNotFound, "Session not found"},
		{game.ErrNicknameTaken, "Nickname already taken"},
		{fmt.Errorf("wrapped: %w", game.ErrSessionNotFound), "Session not found"},
		{errors.New("boom"), "Internal error"},
	}
	for _, tt := range tests {
		if got := ackError(tt.err); got != tt.want {
			t.Errorf("ackError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
