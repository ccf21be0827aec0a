package presence

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/protocol"
	"github.com/fastchat/relay/internal/registry"
)

// Broadcaster pushes presence frames through the Connection Registry.
type Broadcaster struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a Broadcaster.
func New(reg *registry.Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{registry: reg, logger: logger}
}

// AnnounceConnect sends the joiner a snapshot of all other online
// identities, then announces the arrival to everyone else with a
// one-entry delta.
func (b *Broadcaster) AnnounceConnect(id uuid.UUID, displayName string) {
	peers := b.registry.Peers()

	snapshot := make([]protocol.PresenceUser, 0, len(peers))
	for _, p := range peers {
		if p.UserID == id {
			continue
		}
		snapshot = append(snapshot, protocol.PresenceUser{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Online:      true,
		})
	}
	b.registry.Send(id, protocol.NewPresence(protocol.ActionConnect, snapshot))

	delta := []protocol.PresenceUser{{UserID: id, DisplayName: displayName, Online: true}}
	frame := protocol.NewPresence(protocol.ActionConnect, delta)
	for _, p := range peers {
		if p.UserID == id {
			continue
		}
		// A peer can vanish mid-broadcast; Send absorbs that.
		b.registry.Send(p.UserID, frame)
	}

	b.logger.Debug("presence connect announced", "user_id", id, "peers", len(snapshot))
}

// AnnounceDisconnect sends every remaining online identity a one-entry
// delta about the departure.
func (b *Broadcaster) AnnounceDisconnect(id uuid.UUID, displayName string) {
	delta := []protocol.PresenceUser{{UserID: id, DisplayName: displayName, Online: false}}
	frame := protocol.NewPresence(protocol.ActionDisconnect, delta)

	for _, p := range b.registry.Peers() {
		if p.UserID == id {
			continue
		}
		b.registry.Send(p.UserID, frame)
	}

	b.logger.Debug("presence disconnect announced", "user_id", id)
}
