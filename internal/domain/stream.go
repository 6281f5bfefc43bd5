package domain

// StreamEventKind tags a StreamEvent.
type StreamEventKind int

const (
	// EventFragment carries one incremental piece of response text.
	EventFragment StreamEventKind = iota + 1
	// EventFinished ends a stream successfully.
	EventFinished
	// EventError ends a stream with a failure.
	EventError
)

// String returns a human-readable label for the kind.
func (k StreamEventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is a single record read from a streaming response.
// Exactly one of the payload groups is meaningful, selected by Kind.
type StreamEvent struct {
	Kind StreamEventKind

	// EventFragment.
	Fragment string

	// EventFinished. SourceType and Sources are left as reported; defaults
	// are applied by the consumer.
	SourceType SourceType
	Sources    []string

	// EventError. Always a *StreamingError when produced by this module.
	Err error
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventFinished || e.Kind == EventError
}

// FragmentEvent builds a fragment event.
func FragmentEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventFragment, Fragment: text}
}

// FinishedEvent builds a finished event.
func FinishedEvent(source SourceType, sources []string) StreamEvent {
	return StreamEvent{Kind: EventFinished, SourceType: source, Sources: sources}
}

// ErrorEvent builds an error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Kind: EventError, Err: err}
}

// Progress is delivered to a ProgressFunc while a response is assembled.
// FullResponse always holds the whole text accumulated so far, never a delta.
type Progress struct {
	Chunk        string
	FullResponse string
	IsComplete   bool
	SourceType   SourceType
	Sources      []string
}

// ProgressFunc receives assembly progress. It is called from the goroutine
// that drives the stream and must not block for long.
type ProgressFunc func(Progress)
