package models

import "time"

type QueueOperation string

const (
	OperationCreate QueueOperation = "CREATE"
	OperationUpdate QueueOperation = "UPDATE"
	OperationDelete QueueOperation = "DELETE"
)

const DataTypeBeneficiary = "BENEFICIARY"

// QueueEntry is one pending remote operation. DataJSON holds a full record
// snapshot for CREATE and UPDATE and is empty for DELETE.
type QueueEntry struct {
	JobID     int64          `json:"jobId"`
	Operation QueueOperation `json:"operation"`
	DataType  string         `json:"dataType"`
	DataID    string         `json:"dataId"`
	DataJSON  string         `json:"dataJson"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"createdAt"`
	Attempts  int            `json:"attempts"`
}
