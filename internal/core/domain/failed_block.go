package domain

// FailedBlock records a master block whose iteration failed.
type FailedBlock struct {
	ID          string      `json:"id"`
	Network     string      `json:"network"`
	MasterSeqNo uint64      `json:"master_seqno"`
	FailureType FailureType `json:"failure_type"`
	Error       string      `json:"error_msg"`
	RetryCount  int         `json:"retry_count"`
	Status      BlockStatus `json:"status"`
	LastAttempt uint64      `json:"last_attempt"`
	CreatedAt   uint64      `json:"created_at"`
}

type FailureType string

const (
	FailureTypeChain   FailureType = "chain"
	FailureTypeFetch   FailureType = "fetch"
	FailureTypeHandler FailureType = "handler"
	FailureTypeApply   FailureType = "apply"
	FailureTypeCommit  FailureType = "commit"
)

// BlockStatus tracks whether a failed master block was processed later.
type BlockStatus string

const (
	BlockStatusPending  BlockStatus = "pending"
	BlockStatusResolved BlockStatus = "resolved"
)
