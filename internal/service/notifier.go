package service

// Notifier is the hand-off contract from the REST path to the realtime
// layer. Implementations must be best-effort: a Deliver call happens only
// after the durable write succeeded, and its failure or silence never
// propagates back to the HTTP response.
type Notifier interface {
	Deliver(event string, payload any, userIDs []string)
}

// noopNotifier stands in when the realtime layer is absent (tests, tooling).
type noopNotifier struct{}

func (noopNotifier) Deliver(string, any, []string) {}

// NoopNotifier returns a Notifier that discards everything.
func NoopNotifier() Notifier {
	return noopNotifier{}
}
