package mocks

import "sync"

// MockMetricsRecorder counts metric calls for assertions.
type MockMetricsRecorder struct {
	mu sync.Mutex

	Posted    map[string]int
	Reversed  map[string]int
	Rejected  map[string]int
	Recorded  map[string]int
	MRejected map[string]int
	Sagas     map[string]int
}

func NewMockMetricsRecorder() *MockMetricsRecorder {
	return &MockMetricsRecorder{
		Posted:    make(map[string]int),
		Reversed:  make(map[string]int),
		Rejected:  make(map[string]int),
		Recorded:  make(map[string]int),
		MRejected: make(map[string]int),
		Sagas:     make(map[string]int),
	}
}

func (m *MockMetricsRecorder) EntryPosted(companyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Posted[companyID]++
}

func (m *MockMetricsRecorder) EntryReversed(companyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reversed[companyID]++
}

func (m *MockMetricsRecorder) EntryRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected[reason]++
}

func (m *MockMetricsRecorder) MovementRecorded(movementType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recorded[movementType]++
}

func (m *MockMetricsRecorder) MovementRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MRejected[reason]++
}

func (m *MockMetricsRecorder) SagaFinished(sagaType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sagas[sagaType+"/"+outcome]++
}
