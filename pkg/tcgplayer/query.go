package tcgplayer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// QueryParams builds the paging, sorting, and filter parameters TCGplayer
// endpoints understand. The zero value omits everything.
type QueryParams struct {
	Offset    int                 `json:"offset,omitempty"     yaml:"offset,omitempty"`
	Limit     int                 `json:"limit,omitempty"      yaml:"limit,omitempty"`
	SortOrder string              `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
	SortDesc  bool                `json:"sort_desc,omitempty"  yaml:"sort_desc,omitempty"`
	Filters   map[string][]string `json:"filters,omitempty"    yaml:"filters,omitempty"`
}

// NewQueryParams creates an empty QueryParams.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string][]string),
	}
}

// WithOffset sets the number of items to skip.
func (q *QueryParams) WithOffset(offset int) *QueryParams {
	q.Offset = offset

	return q
}

// WithLimit sets the maximum number of items to return.
func (q *QueryParams) WithLimit(limit int) *QueryParams {
	q.Limit = limit

	return q
}

// WithSortOrder sets the property to sort by.
func (q *QueryParams) WithSortOrder(field string) *QueryParams {
	q.SortOrder = field

	return q
}

// WithSortDesc sorts descending when true.
func (q *QueryParams) WithSortDesc(desc bool) *QueryParams {
	q.SortDesc = desc

	return q
}

// WithFilter appends values to a named filter parameter.
func (q *QueryParams) WithFilter(key string, values ...string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string][]string)
	}

	q.Filters[key] = append(q.Filters[key], values...)

	return q
}

// Validate checks the paging parameters. Offset must be zero or greater and
// Limit, when set, must be positive and no larger than MaxPageLimit.
func (q *QueryParams) Validate() error {
	if q == nil {
		return nil
	}

	if err := ValidateNonNegativeInt(q.Offset, "offset"); err != nil {
		return err
	}

	if q.Limit != 0 {
		if err := ValidatePositiveInt(q.Limit, "limit"); err != nil {
			return err
		}

		if q.Limit > constants.MaxPageLimit {
			return newValidationError(
				fmt.Sprintf("limit must not exceed %d, got %d", constants.MaxPageLimit, q.Limit))
		}
	}

	return nil
}

// ToValues converts the params to url.Values. Multi-value filters are
// comma-joined, matching the API's list convention.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}

	if q == nil {
		return values
	}

	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.SortOrder != "" {
		values.Set("sortOrder", q.SortOrder)
	}

	if q.SortDesc {
		values.Set("sortDesc", "true")
	}

	for key, filterValues := range q.Filters {
		if len(filterValues) > 0 {
			values.Set(key, strings.Join(filterValues, ","))
		}
	}

	return values
}
