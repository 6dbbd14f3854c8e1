package audit

import "fmt"

const (
	// MaxQueryLimit is the maximum number of records a single query can
	// return.
	MaxQueryLimit = 10000
)

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// ValidateQuery validates a query and returns a QueryError if any
// parameter is invalid.
func ValidateQuery(q *Query) error {
	// Validate limit
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxQueryLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxQueryLimit, q.Limit))
	}

	// Validate offset
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	// Validate sort order
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}

	// Validate enum filters
	if q.Operation != "" && !q.Operation.Valid() {
		return NewQueryError(q, fmt.Errorf("unknown operation type %q", q.Operation))
	}
	if q.Source != "" && !q.Source.Valid() {
		return NewQueryError(q, fmt.Errorf("unknown change source %q", q.Source))
	}

	// Validate time range
	if q.StartTime != nil && q.EndTime != nil {
		if q.StartTime.After(*q.EndTime) {
			return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
		}
	}

	// Validate version range
	if q.MinVersion != nil && q.MaxVersion != nil {
		if *q.MinVersion > *q.MaxVersion {
			return NewQueryError(q, fmt.Errorf("min_version must be <= max_version"))
		}
	}

	return nil
}
