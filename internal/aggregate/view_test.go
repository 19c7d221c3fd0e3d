package aggregate

import (
	"math/big"
	"testing"

	"randomnessScope/internal/model"
)

// scenarioAggregates builds two requests: id 1 fulfilled with fee 1000,
// id 2 still pending with fee 2000.
func scenarioAggregates(t *testing.T) map[string]model.RandomnessRequest {
	t.Helper()

	events := []model.Event{
		requestedEvent(1, 100, 0, "0xa1", 1000),
		requestedEvent(2, 101, 0, "0xa2", 2000),
		fulfilledEvent(1, 105, 0, "0xb1", 42),
	}
	merged, _ := Merge(nil, events, Options{})
	return merged
}

func TestViewSortByFeeDesc(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{
		SortBy:        model.SortByFee,
		SortDirection: model.SortDesc,
	})

	if result.TotalItems != 2 || len(result.Data) != 2 {
		t.Fatalf("result size mismatch: %+v", result)
	}
	if result.Data[0].ID.Cmp(big.NewInt(2)) != 0 || result.Data[0].Status != model.StatusPending {
		t.Fatalf("first item mismatch: %+v", result.Data[0])
	}
	if result.Data[1].ID.Cmp(big.NewInt(1)) != 0 || result.Data[1].Status != model.StatusFulfilled {
		t.Fatalf("second item mismatch: %+v", result.Data[1])
	}
	if result.Data[1].Fulfillment == nil || result.Data[1].Fulfillment.Randomness.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("fulfillment mismatch: %+v", result.Data[1].Fulfillment)
	}
}

func TestViewStatusFilter(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{
		Filters: model.Filters{Statuses: []model.RequestStatus{model.StatusFulfilled}},
	})

	if result.TotalItems != 1 || len(result.Data) != 1 {
		t.Fatalf("result size mismatch: %+v", result)
	}
	if result.Data[0].ID.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("filtered item mismatch: %+v", result.Data[0])
	}
}

func TestViewPagination(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{
		Page:          2,
		PageSize:      1,
		SortBy:        model.SortByFee,
		SortDirection: model.SortDesc,
	})

	if len(result.Data) != 1 || result.Data[0].ID.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("page 2 item mismatch: %+v", result.Data)
	}
	if result.HasNextPage || !result.HasPreviousPage {
		t.Fatalf("page flags mismatch: %+v", result)
	}
	if result.TotalItems != 2 || result.CurrentPage != 2 {
		t.Fatalf("page metadata mismatch: %+v", result)
	}
}

func TestViewPageBeyondEnd(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{Page: 5, PageSize: 10})

	if len(result.Data) != 0 {
		t.Fatalf("out-of-range page should be empty: %+v", result.Data)
	}
	if result.HasNextPage || !result.HasPreviousPage {
		t.Fatalf("page flags mismatch: %+v", result)
	}
}

func TestViewRequesterFilterCaseInsensitive(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{
		Filters: model.Filters{Requester: "0X1111111111111111111111111111111111111111"},
	})

	if result.TotalItems != 2 {
		t.Fatalf("case-insensitive requester filter failed: %+v", result)
	}

	none := View(scenarioAggregates(t), model.QueryParams{
		Filters: model.Filters{Requester: "0x2222222222222222222222222222222222222222"},
	})
	if none.TotalItems != 0 {
		t.Fatalf("non-matching requester should filter everything: %+v", none)
	}
}

func TestViewTimestampBoundsInclusive(t *testing.T) {
	aggregates := scenarioAggregates(t)

	// Creation timestamps are 1700000100 (id 1) and 1700000101 (id 2).
	result := View(aggregates, model.QueryParams{
		Filters: model.Filters{FromTimestamp: 1700000100, ToTimestamp: 1700000100},
	})
	if result.TotalItems != 1 || result.Data[0].ID.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("inclusive bounds mismatch: %+v", result)
	}

	outside := View(aggregates, model.QueryParams{
		Filters: model.Filters{ToTimestamp: 1700000099},
	})
	if outside.TotalItems != 0 {
		t.Fatalf("upper bound should exclude later requests: %+v", outside)
	}
}

func TestViewTieBreakByID(t *testing.T) {
	events := []model.Event{
		requestedEvent(3, 100, 2, "0xa3", 1000),
		requestedEvent(1, 100, 0, "0xa1", 1000),
		requestedEvent(2, 100, 1, "0xa2", 1000),
	}
	merged, _ := Merge(nil, events, Options{})

	asc := View(merged, model.QueryParams{SortBy: model.SortByFee, SortDirection: model.SortAsc})
	for i, want := range []int64{1, 2, 3} {
		if asc.Data[i].ID.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("asc tie-break mismatch at %d: %s", i, asc.Data[i].ID)
		}
	}

	// Ties stay id-ascending even when the sort direction flips.
	desc := View(merged, model.QueryParams{SortBy: model.SortByFee, SortDirection: model.SortDesc})
	for i, want := range []int64{1, 2, 3} {
		if desc.Data[i].ID.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("desc tie-break mismatch at %d: %s", i, desc.Data[i].ID)
		}
	}
}

func TestViewSortByDeadlineAsc(t *testing.T) {
	result := View(scenarioAggregates(t), model.QueryParams{
		SortBy:        model.SortByDeadline,
		SortDirection: model.SortAsc,
	})

	if result.Data[0].ID.Cmp(big.NewInt(1)) != 0 || result.Data[1].ID.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("deadline sort mismatch: %+v", result.Data)
	}
}
