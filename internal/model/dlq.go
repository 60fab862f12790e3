package model

import "time"

// FailureKind classifies why an individual record was rejected.
type FailureKind string

const (
	// FailureMismatch means the record exists in the source but its field
	// values disagree with it.
	FailureMismatch FailureKind = "mismatch"
	// FailureHallucinated means the record has no corresponding source.
	FailureHallucinated FailureKind = "hallucinated"
	// FailureDropped means the record was removed without a specific
	// comparison reason (e.g. the judge omitted it from both partitions).
	FailureDropped FailureKind = "dropped"
)

// FailedBatch records a whole chunk that never produced usable structured
// output after exhausting retries. Batch granularity, not per-record.
type FailedBatch struct {
	BatchIndex int       `json:"batchIndex"`
	RawOrders  []string  `json:"rawOrders"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	FailedAt   time.Time `json:"failedAt"`
}

// FailedRecord records an individual parsed record rejected on factual
// grounds during semantic validation.
type FailedRecord struct {
	OrderID    string      `json:"orderId,omitempty"`
	RawSnippet string      `json:"rawSnippet,omitempty"`
	Kind       FailureKind `json:"failureType"`
	Reason     string      `json:"reason"`
	FailedAt   time.Time   `json:"failedAt"`
}

// DeadLetterQueue accumulates every unit of failure across a single run.
// Appends only; entries are never rewritten or deduplicated, so repeated
// failures for the same orderId across stages all appear.
type DeadLetterQueue struct {
	FailedBatches []FailedBatch  `json:"failedBatches"`
	FailedRecords []FailedRecord `json:"failedRecords"`
}

// AddBatchFailure appends a parse-stage batch failure.
func (q *DeadLetterQueue) AddBatchFailure(batchIndex int, rawOrders []string, errMsg string, attempts int) {
	q.FailedBatches = append(q.FailedBatches, FailedBatch{
		BatchIndex: batchIndex,
		RawOrders:  rawOrders,
		Error:      errMsg,
		Attempts:   attempts,
		FailedAt:   time.Now().UTC(),
	})
}

// AddRecordFailure appends a validate-stage record failure.
func (q *DeadLetterQueue) AddRecordFailure(rec FailedRecord) {
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now().UTC()
	}
	q.FailedRecords = append(q.FailedRecords, rec)
}

// TotalFailures is the sum of raw-order counts across failed batches plus
// the count of failed records. Computed on demand, never cached.
func (q *DeadLetterQueue) TotalFailures() int {
	total := len(q.FailedRecords)
	for _, b := range q.FailedBatches {
		total += len(b.RawOrders)
	}
	return total
}
