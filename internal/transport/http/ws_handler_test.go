package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hustle/internal/domain"
)

func TestLeaderboardFeedPushesUpdates(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.server.Router())
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/round2/scores/live"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readLeaderboard(t, conn)
	if len(first.Entries) != 0 {
		t.Fatalf("expected empty initial leaderboard, got %+v", first.Entries)
	}

	teamID, _ := env.register(t, "Finishers")
	env.completeRound(t, teamID)

	// Earlier snapshots may arrive first; wait for the one that ranks the team.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		lb := readLeaderboard(t, conn)
		if len(lb.Entries) == 1 && lb.Entries[0].TeamID == teamID {
			return
		}
	}
	t.Fatalf("leaderboard never listed the finished team")
}

func readLeaderboard(t *testing.T, conn *websocket.Conn) domain.Leaderboard {
	t.Helper()
	var msg struct {
		Type    string             `json:"type"`
		Payload domain.Leaderboard `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}

// completeRound plays the team through all six slots in unlock order.
func (e *testEnv) completeRound(t *testing.T, teamID string) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := e.rounds.CreateProgress(ctx, teamID, "Finishers"); err != nil {
		t.Fatalf("create progress: %v", err)
	}
	c := e.rounds.Engine().Catalog()
	pairs := []struct {
		slot domain.Slot
		kind domain.SlotKind
		code string
	}{
		{domain.SlotAptitude1, domain.KindDebug, debugFix},
		{domain.SlotAptitude2, domain.KindTrace, traceAnswer},
		{domain.SlotAptitude3, domain.KindProgram, programFib},
	}
	for _, p := range pairs {
		q, err := c.Aptitude(p.slot)
		if err != nil {
			t.Fatalf("aptitude %s: %v", p.slot, err)
		}
		if _, err := e.rounds.SubmitAptitudeAnswer(ctx, teamID, p.slot, q.Correct); err != nil {
			t.Fatalf("answer %s: %v", p.slot, err)
		}
		if _, err := e.rounds.SubmitCodingSolution(ctx, teamID, p.kind, p.code, 60, false); err != nil {
			t.Fatalf("submit %s: %v", p.kind, err)
		}
	}
}
