package aggregate

import (
	"math/big"
	"sort"
	"strings"

	"randomnessScope/internal/model"
)

// View filters, sorts, and pages the merged aggregate set. Pure; no
// I/O. Result-set paging here is unrelated to block-window paging.
func View(aggregates map[string]model.RandomnessRequest, params model.QueryParams) model.PageResult {
	params = params.Normalize()

	filtered := make([]model.RandomnessRequest, 0, len(aggregates))
	for _, request := range aggregates {
		if matches(request, params.Filters) {
			filtered = append(filtered, request)
		}
	}

	sortRequests(filtered, params.SortBy, params.SortDirection)

	total := len(filtered)
	start := int(params.Page-1) * int(params.PageSize)
	end := start + int(params.PageSize)
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return model.PageResult{
		Data:            filtered[start:end],
		TotalItems:      total,
		CurrentPage:     params.Page,
		PageSize:        params.PageSize,
		HasNextPage:     int(params.Page)*int(params.PageSize) < total,
		HasPreviousPage: params.Page > 1,
	}
}

func matches(request model.RandomnessRequest, filters model.Filters) bool {
	if filters.Requester != "" && !strings.EqualFold(request.Requester, filters.Requester) {
		return false
	}
	if len(filters.Statuses) > 0 {
		found := false
		for _, status := range filters.Statuses {
			if request.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.FromTimestamp != 0 && request.Timestamp < filters.FromTimestamp {
		return false
	}
	if filters.ToTimestamp != 0 && request.Timestamp > filters.ToTimestamp {
		return false
	}
	return true
}

func sortRequests(requests []model.RandomnessRequest, key model.SortKey, direction model.SortDirection) {
	sort.SliceStable(requests, func(i, j int) bool {
		cmp := compareByKey(requests[i], requests[j], key)
		if direction == model.SortDesc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
		// Ties break by id ascending regardless of direction.
		return compareBig(requests[i].ID, requests[j].ID) < 0
	})
}

func compareByKey(a, b model.RandomnessRequest, key model.SortKey) int {
	switch key {
	case model.SortByFee:
		return compareBig(a.FeePaid, b.FeePaid)
	case model.SortByDeadline:
		return compareUint64(a.Deadline, b.Deadline)
	default:
		return compareUint64(a.Timestamp, b.Timestamp)
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBig(a, b *big.Int) int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	return a.Cmp(b)
}
