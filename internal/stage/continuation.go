package stage

// Continuation is the outcome of one stage run and drives the pipeline.
type Continuation int

const (
	// Continue advances the pipeline to the next stage.
	Continue Continuation = iota
	// Fail ends the test as a business failure: the target violated an
	// expected contract.
	Fail
	// Error ends the test as an unexpected failure.
	Error
	// Retry requests re-execution of the same stage.
	Retry
	// Stop ends the test neutrally; nothing failed, the lifecycle is done.
	Stop
)

// String returns the metric/log label of the continuation.
func (c Continuation) String() string {
	switch c {
	case Continue:
		return "CONTINUE"
	case Fail:
		return "FAIL"
	case Error:
		return "ERROR"
	case Retry:
		return "RETRY"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// IsFailState reports whether the continuation counts as a failure for
// metric labeling.
func (c Continuation) IsFailState() bool {
	return c == Fail || c == Error
}
