package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of a batch operation.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
	BatchStatusCancelled  BatchStatus = "CANCELLED"
)

// IsTerminal returns true for COMPLETED, FAILED and CANCELLED.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// BatchOperationType names the kind of work a batch fans out.
type BatchOperationType string

const (
	BatchTypeTokenTransfer BatchOperationType = "TOKEN_TRANSFER"
	BatchTypeNFTTransfer   BatchOperationType = "NFT_TRANSFER"
)

// BatchOperation tracks progress of a long-running multi-item job.
type BatchOperation struct {
	ID                  string             `json:"batch_id"`
	OperationType       BatchOperationType `json:"operation_type"`
	Status              BatchStatus        `json:"status"`
	TotalOperations     int                `json:"total_operations"`
	CompletedOperations int                `json:"completed_operations"`
	FailedOperations    int                `json:"failed_operations"`
	Progress            int                `json:"progress"`
	ErrorMessage        *string            `json:"error_message,omitempty"`
	OperationDetails    json.RawMessage    `json:"operation_details,omitempty"`
	CreatedBy           uuid.UUID          `json:"created_by"`
	CreatedAt           time.Time          `json:"created_at"`
	StartTime           *time.Time         `json:"start_time,omitempty"`
	EndTime             *time.Time         `json:"end_time,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// NewBatchID returns an id of the form "batch_<32 hex chars>".
func NewBatchID() string {
	return "batch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CalculateProgress returns round((completed+failed)/total*100), capped at 100.
func CalculateProgress(completed, failed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed+failed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// BatchItemResult is the outcome of one unit of a batch.
type BatchItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}
