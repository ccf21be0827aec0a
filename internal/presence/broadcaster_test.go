package presence

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/protocol"
	"github.com/fastchat/relay/internal/registry"
)

type captureSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureSender) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *captureSender) Ping() error        { return nil }
func (c *captureSender) Close(string) error { return nil }

func (c *captureSender) presenceFrames(t *testing.T) []protocol.Presence {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []protocol.Presence
	for _, data := range c.frames {
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Type != protocol.TypePresence {
			continue
		}
		var p protocol.Presence
		if err := json.Unmarshal(data, &p); err != nil {
			t.Fatalf("bad presence frame: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestAnnounceConnect_SnapshotAndDeltas(t *testing.T) {
	reg := registry.New(nil)
	b := New(reg, nil)

	a, bID, c := uuid.New(), uuid.New(), uuid.New()
	sa, sb, sc := &captureSender{}, &captureSender{}, &captureSender{}

	reg.Register(a, "alice", sa, "")
	reg.Register(bID, "bob", sb, "")
	reg.Register(c, "carol", sc, "")

	b.AnnounceConnect(c, "carol")

	// Joiner: exactly one snapshot frame listing the two prior
	// identities, not including itself.
	got := sc.presenceFrames(t)
	if len(got) != 1 {
		t.Fatalf("joiner received %d presence frames, want 1", len(got))
	}
	snap := got[0]
	if snap.Action != protocol.ActionConnect {
		t.Errorf("snapshot action = %q, want connect", snap.Action)
	}
	if len(snap.Users) != 2 {
		t.Fatalf("snapshot lists %d users, want 2", len(snap.Users))
	}
	for _, u := range snap.Users {
		if u.UserID == c {
			t.Error("snapshot must not include the joiner itself")
		}
		if !u.Online {
			t.Error("snapshot entries must be online")
		}
	}

	// Each prior identity: exactly one single-entry delta about carol.
	for name, s := range map[string]*captureSender{"alice": sa, "bob": sb} {
		frames := s.presenceFrames(t)
		if len(frames) != 1 {
			t.Fatalf("%s received %d presence frames, want 1", name, len(frames))
		}
		delta := frames[0]
		if len(delta.Users) != 1 || delta.Users[0].UserID != c {
			t.Errorf("%s delta = %+v, want single entry for joiner", name, delta.Users)
		}
	}
}

func TestAnnounceConnect_FirstUserGetsEmptySnapshot(t *testing.T) {
	reg := registry.New(nil)
	b := New(reg, nil)

	a := uuid.New()
	sa := &captureSender{}
	reg.Register(a, "alice", sa, "")

	b.AnnounceConnect(a, "alice")

	frames := sa.presenceFrames(t)
	if len(frames) != 1 {
		t.Fatalf("got %d presence frames, want 1", len(frames))
	}
	if len(frames[0].Users) != 0 {
		t.Errorf("snapshot lists %d users, want 0", len(frames[0].Users))
	}
}

func TestAnnounceDisconnect_DeltaToRemaining(t *testing.T) {
	reg := registry.New(nil)
	b := New(reg, nil)

	a, bID := uuid.New(), uuid.New()
	sa, sb := &captureSender{}, &captureSender{}
	reg.Register(a, "alice", sa, "")
	reg.Register(bID, "bob", sb, "")

	reg.Unregister(bID, sb)
	b.AnnounceDisconnect(bID, "bob")

	frames := sa.presenceFrames(t)
	if len(frames) != 1 {
		t.Fatalf("remaining peer received %d presence frames, want 1", len(frames))
	}
	d := frames[0]
	if d.Action != protocol.ActionDisconnect {
		t.Errorf("action = %q, want disconnect", d.Action)
	}
	if len(d.Users) != 1 || d.Users[0].UserID != bID || d.Users[0].Online {
		t.Errorf("delta = %+v, want single offline entry for bob", d.Users)
	}
	if len(sb.presenceFrames(t)) != 0 {
		t.Error("departed identity must not receive its own disconnect delta")
	}
}
