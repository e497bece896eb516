package pubsub

import (
	"encoding/json"
	"strconv"

	"clubinex/internal/domain/entity"

	"github.com/pkg/errors"
)

// Message attribute keys shared with the worker push handler.
const (
	AttrJobID         = "job_id"
	AttrTransactionID = "transaction_id"
	AttrRequestID     = "request_id"
	AttrAmount        = "amount"
)

func encodeJob(job *entity.CommissionJob) (data []byte, attributes map[string]string, err error) {
	data, err = json.Marshal(job)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	attributes = map[string]string{
		AttrJobID:         job.JobID,
		AttrTransactionID: job.TransactionID,
		AttrAmount:        strconv.FormatInt(job.Amount, 10),
	}
	if job.RequestID != "" {
		attributes[AttrRequestID] = job.RequestID
	}

	return data, attributes, nil
}
