// Package bench records harness-measured durations and metric values pulled
// from the service under test, and persists them for downstream comparison
// tooling. Recording never fails a scenario run.
package bench

import (
	"sync"
	"time"

	"github.com/pgcompute/compute-contract-tests/logging"
)

// Direction is a hint for downstream regression tooling about which way a
// metric should move. It is never used for pass/fail inside the harness.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

func (d Direction) String() string {
	if d == HigherIsBetter {
		return "higher_is_better"
	}
	return "lower_is_better"
}

// Report is one recorded metric value.
type Report struct {
	Scenario   string
	Name       string
	Value      float64
	Unit       string
	Direction  Direction
	RecordedAt time.Time
}

// Benchmarker is the process-wide entry point. Use ForScenario to get a
// Recorder scoped to one scenario run.
type Benchmarker struct {
	store  *ResultStore // may be nil, in which case reports are only logged
	logger logging.Logger
}

func NewBenchmarker(store *ResultStore, logger logging.Logger) *Benchmarker {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Benchmarker{store: store, logger: logger}
}

// ForScenario returns a Recorder whose samples are attributed to the given
// scenario ID. Recorders for different scenarios are independent.
func (b *Benchmarker) ForScenario(scenarioID string) *Recorder {
	return &Recorder{
		b:         b,
		scenario:  scenarioID,
		durations: make(map[string]time.Duration),
	}
}

// Recorder records duration samples and metric reports for one scenario run.
type Recorder struct {
	b         *Benchmarker
	scenario  string
	lock      sync.Mutex
	durations map[string]time.Duration
}

// MeasureDuration runs fn and records its elapsed wall-clock time in
// milliseconds under the given label. If fn panics, the panic propagates and
// no sample is recorded. Recording the same label twice within a scenario is
// undefined; the second sample is dropped with a log message.
func (r *Recorder) MeasureDuration(label string, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)

	r.lock.Lock()
	_, dup := r.durations[label]
	if !dup {
		r.durations[label] = elapsed
	}
	r.lock.Unlock()
	if dup {
		r.b.logger.Printf("duration label %q recorded more than once in scenario %q; dropping second sample",
			label, r.scenario)
		return
	}
	r.Record(label, float64(elapsed.Milliseconds()), "ms", LowerIsBetter)
}

// Duration returns the sample recorded under label, if any.
func (r *Recorder) Duration(label string) (time.Duration, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	d, ok := r.durations[label]
	return d, ok
}

// Record persists a named metric value. It is a pure recording call: a
// persistence error is logged and otherwise ignored.
func (r *Recorder) Record(name string, value float64, unit string, direction Direction) {
	report := Report{
		Scenario:   r.scenario,
		Name:       name,
		Value:      value,
		Unit:       unit,
		Direction:  direction,
		RecordedAt: time.Now(),
	}
	r.b.logger.Printf("metric %s/%s = %g %s (%s)", report.Scenario, name, value, unit, direction)
	if r.b.store == nil {
		return
	}
	if err := r.b.store.Insert(report); err != nil {
		r.b.logger.Printf("could not persist metric %s/%s: %s", report.Scenario, name, err)
	}
}
