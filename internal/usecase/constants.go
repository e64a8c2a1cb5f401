package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a single posting or movement
	// transaction so locks are never held indefinitely.
	DefaultTransactionTimeout = 10 * time.Second

	// BalanceCacheTTL is how long stock level projections stay cached.
	BalanceCacheTTL = 5 * time.Minute

	// DefaultLedgerPageSize limits account ledger queries when the
	// caller does not paginate.
	DefaultLedgerPageSize = 100

	// MaxLedgerPageSize caps account ledger pagination.
	MaxLedgerPageSize = 1000
)
