package aggregate

import (
	"fmt"
	"math/big"
	"sort"

	"randomnessScope/internal/model"
)

// DefaultDeadlineOffset is the advisory deadline estimate in seconds
// added to the creation block timestamp. The emitted event does not
// carry the on-chain deadline value.
const DefaultDeadlineOffset = 30

// Options tune the fold.
type Options struct {
	DeadlineOffset uint64
}

// Stats counts what the fold did with its input.
type Stats struct {
	Applied    int
	Duplicates int
	Orphans    int
	Ignored    int
}

// Add accumulates stats across windows.
func (s *Stats) Add(other Stats) {
	s.Applied += other.Applied
	s.Duplicates += other.Duplicates
	s.Orphans += other.Orphans
	s.Ignored += other.Ignored
}

// Merge folds events into a copy of existing, keyed by request id. The
// input map is never mutated. Events are deduplicated on
// (txHash, logIndex) and applied in (blockNumber, logIndex) order per
// request id, so fetch-completion order cannot reorder the fold.
//
// A Requested event creates a pending aggregate; Fulfilled and
// CallbackFailed move an existing pending aggregate to a terminal
// status. Terminal aggregates never change again, and a fulfillment or
// failure without a prior Requested in the merge set is dropped as an
// orphan.
func Merge(existing map[string]model.RandomnessRequest, events []model.Event, opts Options) (map[string]model.RandomnessRequest, Stats) {
	if opts.DeadlineOffset == 0 {
		opts.DeadlineOffset = DefaultDeadlineOffset
	}

	out := make(map[string]model.RandomnessRequest, len(existing)+len(events))
	for id, request := range existing {
		out[id] = request
	}

	var stats Stats
	seen := make(map[string]struct{}, len(events))
	byID := make(map[string][]model.Event)
	order := make([]string, 0)

	for _, event := range events {
		if event.RequestID == nil {
			stats.Ignored++
			continue
		}
		dedupKey := fmt.Sprintf("%s:%d", event.TxHash, event.LogIndex)
		if _, ok := seen[dedupKey]; ok {
			stats.Duplicates++
			continue
		}
		seen[dedupKey] = struct{}{}

		id := event.RequestID.String()
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], event)
	}

	for _, id := range order {
		partition := byID[id]
		sort.SliceStable(partition, func(i, j int) bool {
			if partition[i].Block.Number != partition[j].Block.Number {
				return partition[i].Block.Number < partition[j].Block.Number
			}
			return partition[i].LogIndex < partition[j].LogIndex
		})
		for _, event := range partition {
			applyEvent(out, id, event, opts, &stats)
		}
	}

	return out, stats
}

func applyEvent(out map[string]model.RandomnessRequest, id string, event model.Event, opts Options, stats *Stats) {
	switch data := event.Data.(type) {
	case model.RequestedData:
		// Replayed creation of an existing aggregate is a no-op.
		if _, ok := out[id]; ok {
			stats.Ignored++
			return
		}
		out[id] = model.RandomnessRequest{
			ID:                 new(big.Int).Set(event.RequestID),
			Requester:          data.Requester,
			PubKeyHash:         data.PubKeyHash,
			Round:              data.Round,
			Deadline:           event.Block.Timestamp + opts.DeadlineOffset,
			CallbackGasLimit:   data.CallbackGasLimit,
			FeePaid:            data.FeePaid,
			EffectiveFeePerGas: data.EffectiveFeePerGas,
			Status:             model.StatusPending,
			TxHash:             event.TxHash,
			BlockNumber:        event.Block.Number,
			Timestamp:          event.Block.Timestamp,
		}
		stats.Applied++

	case model.FulfilledData:
		request, ok := out[id]
		if !ok {
			stats.Orphans++
			return
		}
		if request.Status != model.StatusPending {
			stats.Ignored++
			return
		}
		request.Status = model.StatusFulfilled
		request.Fulfillment = &model.Fulfillment{
			RequestID:       new(big.Int).Set(event.RequestID),
			Randomness:      data.Randomness,
			CallbackSuccess: data.CallbackSuccess,
			ActualGasUsed:   data.ActualGasUsed,
			TxHash:          event.TxHash,
			BlockNumber:     event.Block.Number,
			Timestamp:       event.Block.Timestamp,
		}
		out[id] = request
		stats.Applied++

	case model.CallbackFailedData:
		request, ok := out[id]
		if !ok {
			stats.Orphans++
			return
		}
		if request.Status != model.StatusPending {
			stats.Ignored++
			return
		}
		request.Status = model.StatusFailed
		request.Failure = &model.CallbackFailure{
			RequestID:     new(big.Int).Set(event.RequestID),
			Retdata:       data.Retdata,
			GasLimit:      data.GasLimit,
			ActualGasUsed: data.ActualGasUsed,
			TxHash:        event.TxHash,
			BlockNumber:   event.Block.Number,
			Timestamp:     event.Block.Timestamp,
		}
		out[id] = request
		stats.Applied++

	default:
		stats.Ignored++
	}
}
