package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/erpledger/internal/usecase"
)

var _ usecase.MetricsRecorder = (*Metrics)(nil)

// Metrics implements usecase.MetricsRecorder with Prometheus counters.
type Metrics struct {
	entriesPosted     *prometheus.CounterVec
	entriesReversed   *prometheus.CounterVec
	entriesRejected   *prometheus.CounterVec
	movementsRecorded *prometheus.CounterVec
	movementsRejected *prometheus.CounterVec
	sagasFinished     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the given
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		entriesPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_journal_entries_posted_total",
				Help: "Total number of journal entries posted",
			},
			[]string{"company_id"},
		),
		entriesReversed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_journal_entries_reversed_total",
				Help: "Total number of journal entries reversed",
			},
			[]string{"company_id"},
		),
		entriesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_journal_entries_rejected_total",
				Help: "Total number of rejected journal entries by reason",
			},
			[]string{"reason"},
		),
		movementsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_stock_movements_recorded_total",
				Help: "Total number of stock movements recorded by type",
			},
			[]string{"type"},
		),
		movementsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_stock_movements_rejected_total",
				Help: "Total number of rejected stock movements by reason",
			},
			[]string{"reason"},
		),
		sagasFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpledger_fulfillment_sagas_finished_total",
				Help: "Total number of finished fulfillment sagas by outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// EntryPosted counts a posted journal entry.
func (m *Metrics) EntryPosted(companyID string) {
	m.entriesPosted.WithLabelValues(companyID).Inc()
}

// EntryReversed counts a reversed journal entry.
func (m *Metrics) EntryReversed(companyID string) {
	m.entriesReversed.WithLabelValues(companyID).Inc()
}

// EntryRejected counts a rejected journal entry.
func (m *Metrics) EntryRejected(reason string) {
	m.entriesRejected.WithLabelValues(reason).Inc()
}

// MovementRecorded counts a recorded stock movement.
func (m *Metrics) MovementRecorded(movementType string) {
	m.movementsRecorded.WithLabelValues(movementType).Inc()
}

// MovementRejected counts a rejected stock movement.
func (m *Metrics) MovementRejected(reason string) {
	m.movementsRejected.WithLabelValues(reason).Inc()
}

// SagaFinished counts a finished fulfillment saga.
func (m *Metrics) SagaFinished(sagaType, outcome string) {
	m.sagasFinished.WithLabelValues(sagaType, outcome).Inc()
}
