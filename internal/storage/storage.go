package storage

import "randomnessScope/internal/model"

// Storage defines a sink for exported request records.
type Storage interface {
	PutRequestBatch(requests []model.RequestRecord) error
}
