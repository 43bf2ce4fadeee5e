package ports

// ProgressStage names a step of a long-running remote operation.
type ProgressStage string

const (
	StageValidating ProgressStage = "validating"
	StageCloning    ProgressStage = "cloning"
	StageComplete   ProgressStage = "complete"
	StageError      ProgressStage = "error"
)

// ProgressEvent is one record of the progress stream. Percent is
// monotonically non-decreasing within one logical operation; the error
// stage may occur at any point and terminates the sequence.
type ProgressEvent struct {
	Stage   ProgressStage
	Percent int
	Message string
}

// ProgressSink consumes progress events. Implementations must not block
// the publishing operation indefinitely.
type ProgressSink interface {
	Publish(ProgressEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(ProgressEvent) {}

// ChannelSink forwards events to a buffered channel, giving callers a
// consumable stream instead of a callback slot.
type ChannelSink struct {
	ch chan ProgressEvent
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan ProgressEvent, buffer)}
}

// Publish delivers an event, dropping it if the buffer is full so a slow
// consumer never stalls a clone.
func (s *ChannelSink) Publish(e ProgressEvent) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events exposes the stream for consumption.
func (s *ChannelSink) Events() <-chan ProgressEvent {
	return s.ch
}

// Close ends the stream.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// RecordingSink captures every event in order, for tests asserting the
// exact stage sequence.
type RecordingSink struct {
	Recorded []ProgressEvent
}

func (s *RecordingSink) Publish(e ProgressEvent) {
	s.Recorded = append(s.Recorded, e)
}
