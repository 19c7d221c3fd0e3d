package model

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey selects the sort field for the request view.
type SortKey string

const (
	SortByTimestamp SortKey = "timestamp"
	SortByFee       SortKey = "fee"
	SortByDeadline  SortKey = "deadline"
)

// SortDirection orders the sorted view.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// DefaultPageSize applies when QueryParams leaves PageSize unset.
const DefaultPageSize = 10

// ParseSortKey converts a user-supplied sort key string.
func ParseSortKey(input string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "timestamp":
		return SortByTimestamp, nil
	case "fee":
		return SortByFee, nil
	case "deadline":
		return SortByDeadline, nil
	default:
		return "", fmt.Errorf("unknown sort key: %s", input)
	}
}

// ParseSortDirection converts a user-supplied sort direction string.
func ParseSortDirection(input string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "asc":
		return SortAsc, nil
	case "", "desc":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("unknown sort direction: %s", input)
	}
}

// Filters narrow the aggregate set before sorting and paging. Zero
// values mean the predicate is unset. Timestamp bounds are inclusive.
type Filters struct {
	Requester     string
	Statuses      []RequestStatus
	FromTimestamp uint64
	ToTimestamp   uint64
}

// QueryParams describe one page request over the merged aggregate set.
// Result-set paging here is independent of block-window paging.
type QueryParams struct {
	Page          uint32
	PageSize      uint32
	Filters       Filters
	SortBy        SortKey
	SortDirection SortDirection
}

// Normalize fills defaults: page numbers are 1-based.
func (p QueryParams) Normalize() QueryParams {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.SortBy == "" {
		p.SortBy = SortByTimestamp
	}
	if p.SortDirection == "" {
		p.SortDirection = SortDesc
	}
	return p
}

// Key returns a canonical cache-key string: equal params produce equal
// keys regardless of status filter order or requester casing.
func (p QueryParams) Key() string {
	p = p.Normalize()

	statuses := make([]string, 0, len(p.Filters.Statuses))
	for _, status := range p.Filters.Statuses {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	return fmt.Sprintf("p=%d,ps=%d,req=%s,st=%s,from=%d,to=%d,sort=%s,dir=%s",
		p.Page,
		p.PageSize,
		strings.ToLower(p.Filters.Requester),
		strings.Join(statuses, "+"),
		p.Filters.FromTimestamp,
		p.Filters.ToTimestamp,
		p.SortBy,
		p.SortDirection,
	)
}

// PageResult is one page of the filtered, sorted aggregate view.
type PageResult struct {
	Data            []RandomnessRequest
	TotalItems      int
	CurrentPage     uint32
	PageSize        uint32
	HasNextPage     bool
	HasPreviousPage bool
}
