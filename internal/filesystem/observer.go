package filesystem

// Observer records filesystem operation metrics. The metrics package
// provides the implementation so that filesystem does not import it.
type Observer interface {
	// ObserveOperation records duration and error status for one operation.
	// volume is the resolved label ("images", "cache"); operation is
	// "stat", "open", "read", "map" or "write".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// defaultObserver is nil until SetObserver is called; recording is then
// skipped, which keeps tests free of Prometheus state.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
