package ws

// Coordinator fans a persisted event out to the per-user rooms of every
// affected user. It never enumerates individual connections: all of a
// user's live connections sit in the same room, and an empty room is a
// silent no-op. Live delivery is best-effort at-most-once on top of the
// at-least-once durable store; a missed event is recovered by the client's
// next REST fetch.
type Coordinator struct {
	hub *Hub
}

func NewCoordinator(hub *Hub) *Coordinator {
	return &Coordinator{hub: hub}
}

// Deliver emits the event once per target user's room.
func (d *Coordinator) Deliver(event string, payload any, userIDs []string) {
	for _, id := range userIDs {
		d.hub.Emit(UserRoom(id), event, payload)
	}
}
