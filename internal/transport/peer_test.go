package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edu-arena/internal/config"
	"edu-arena/internal/models"
	"edu-arena/internal/protocol"
	"edu-arena/internal/rendezvous"
	"edu-arena/internal/repository"
	"edu-arena/internal/server"

	"github.com/gin-gonic/gin"
)

func newRendezvous(t *testing.T) *rendezvous.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := server.NewServer(config.Default(), repository.NewInMemoryRegistry(), discardLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return rendezvous.NewClient(ts.URL)
}

func startHost(t *testing.T, rv *rendezvous.Client, code string) *PeerHost {
	t.Helper()
	host := NewPeerHost(code, rv, discardLogger())
	ts := httptest.NewServer(host.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { host.Close() })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/peer"
	if err := host.Register(context.Background(), url); err != nil {
		t.Fatalf("register host: %v", err)
	}
	return host
}

func dial(t *testing.T, rv *rendezvous.Client, code string, heartbeat time.Duration) *PeerStudent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := DialPeer(ctx, rv, code, heartbeat, discardLogger())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPeerHostCatchUpThenBroadcast(t *testing.T) {
	rv := newRendezvous(t)
	host := startHost(t, rv, "ABCDE")

	state := models.NewGameState("ABCDE", nil)
	host.SetSnapshot(func() (protocol.Envelope, error) {
		return protocol.EncodeStateUpdate(models.FullPatch(state), true)
	})

	student := dial(t, rv, "ABCDE", 0)
	in := collect(t, student)

	catchUp := next(t, in)
	update, err := protocol.DecodePayload[protocol.StateUpdate](catchUp)
	if err != nil {
		t.Fatalf("decode catch-up: %v", err)
	}
	if !update.Full || update.Patch.RoomCode == nil || *update.Patch.RoomCode != "ABCDE" {
		t.Fatalf("unexpected catch-up: %+v", update)
	}

	started := true
	env, _ := protocol.EncodeStateUpdate(models.Patch{IsStarted: &started}, false)
	if err := host.Publish(env); err != nil {
		t.Fatalf("publish: %v", err)
	}
	update, err = protocol.DecodePayload[protocol.StateUpdate](next(t, in))
	if err != nil {
		t.Fatal(err)
	}
	if update.Full || update.Patch.IsStarted == nil || !*update.Patch.IsStarted {
		t.Fatalf("unexpected update: %+v", update)
	}
}

func TestPeerStudentActionReachesHostAndReply(t *testing.T) {
	rv := newRendezvous(t)
	host := startHost(t, rv, "ABCDE")
	toHost := collect(t, host)

	student := dial(t, rv, "ABCDE", 0)
	in := collect(t, student)

	if err := student.Publish(actionEnvelope(t, models.AnswerQuiz("alice", true))); err != nil {
		t.Fatalf("publish: %v", err)
	}
	env := next(t, toHost)
	if env.Type != protocol.MsgPlayerAction || env.From == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	reject, _ := protocol.NewEnvelope(protocol.MsgActionRejected, protocol.ActionRejected{PlayerID: "alice", Kind: "ANSWER_QUIZ", Reason: "nope"})
	if err := host.Reply(env.From, reject); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got := next(t, in); got.Type != protocol.MsgActionRejected {
		t.Fatalf("expected ACTION_REJECTED, got %s", got.Type)
	}
	if err := host.Reply("unknown-connection", reject); err == nil {
		t.Fatal("expected reply to unknown connection to fail")
	}
}

func TestPeerHeartbeatAcknowledged(t *testing.T) {
	rv := newRendezvous(t)
	host := startHost(t, rv, "ABCDE")
	toHost := collect(t, host)

	student := dial(t, rv, "ABCDE", 20*time.Millisecond)
	waitFor(t, func() bool { return student.LastAck() > 0 })
	expectNone(t, toHost)
}

func TestPeerHostIDCollisionIsFatal(t *testing.T) {
	rv := newRendezvous(t)
	startHost(t, rv, "ABCDE")

	second := NewPeerHost("ABCDE", rv, discardLogger())
	defer second.Close()
	err := second.Register(context.Background(), "ws://127.0.0.1:1/peer")
	if !errors.Is(err, rendezvous.ErrIDTaken) {
		t.Fatalf("expected ErrIDTaken, got %v", err)
	}
}

func TestPeerHostCloseEndsLinkAndReleasesID(t *testing.T) {
	rv := newRendezvous(t)
	host := startHost(t, rv, "ABCDE")
	student := dial(t, rv, "ABCDE", 0)
	waitFor(t, func() bool { return host.Connections() == 1 })

	if err := host.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-student.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("student link still open after host closed")
	}
	if err := student.Publish(actionEnvelope(t, models.Attack("alice"))); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := rv.Resolve(context.Background(), rendezvous.PeerID("ABCDE")); !errors.Is(err, rendezvous.ErrNotFound) {
		t.Fatalf("expected id released, got %v", err)
	}
}

func TestDialUnknownRoom(t *testing.T) {
	rv := newRendezvous(t)
	_, err := DialPeer(context.Background(), rv, "NOPE1", 0, discardLogger())
	if !errors.Is(err, rendezvous.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
