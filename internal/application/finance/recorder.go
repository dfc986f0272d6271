package finance

// Recorder receives operational counters from the finance services.
// The prometheus implementation lives in infrastructure/metrics.
type Recorder interface {
	ReferenceIssued(sequential bool)
	ReferenceConflict()
	ReferenceIssuanceFailed()
	AggregationRetry()
	ClosureValidated()
	ValidationRejected(reason string)
}

// NopRecorder discards every measurement
type NopRecorder struct{}

func (NopRecorder) ReferenceIssued(bool)      {}
func (NopRecorder) ReferenceConflict()        {}
func (NopRecorder) ReferenceIssuanceFailed()  {}
func (NopRecorder) AggregationRetry()         {}
func (NopRecorder) ClosureValidated()         {}
func (NopRecorder) ValidationRejected(string) {}
