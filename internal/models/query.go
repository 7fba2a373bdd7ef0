// Package models - Inbound query types.
// QueryParams is the filter record for collection queries. Every field is
// optional; a nil pointer means "absent" and is never forwarded upstream or
// folded into a cache key.
package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ordering values accepted by the event service.
const (
	OrderByTime         = "time"
	OrderByTimeAsc      = "time-asc"
	OrderByMagnitude    = "magnitude"
	OrderByMagnitudeAsc = "magnitude-asc"
)

const (
	// DefaultQueryLimit is applied when a collection query omits limit.
	DefaultQueryLimit = 50
	// MaxQueryLimit is the largest result count the event service accepts.
	MaxQueryLimit = 20000
)

// Query parameter names, in declaration order.
const (
	ParamStartTime    = "starttime"
	ParamEndTime      = "endtime"
	ParamMinMagnitude = "minmagnitude"
	ParamMaxMagnitude = "maxmagnitude"
	ParamLimit        = "limit"
	ParamOrderBy      = "orderby"
)

// QueryParams filters a collection query.
type QueryParams struct {
	StartTime    *string  `json:"starttime,omitempty"`
	EndTime      *string  `json:"endtime,omitempty"`
	MinMagnitude *float64 `json:"minmagnitude,omitempty"`
	MaxMagnitude *float64 `json:"maxmagnitude,omitempty"`
	Limit        *int     `json:"limit,omitempty"`
	OrderBy      *string  `json:"orderby,omitempty"`
}

// Param is a single defined query field rendered as text.
type Param struct {
	Name  string
	Value string
}

// IsValidOrderBy reports whether v is an ordering the event service accepts.
func IsValidOrderBy(v string) bool {
	switch v {
	case OrderByTime, OrderByTimeAsc, OrderByMagnitude, OrderByMagnitudeAsc:
		return true
	}
	return false
}

// WithDefaults returns a copy of q with the boundary defaults filled in for
// limit and orderby. Fields already set are left untouched.
func (q QueryParams) WithDefaults(limit int, orderBy string) QueryParams {
	if q.Limit == nil {
		q.Limit = &limit
	}
	if q.OrderBy == nil {
		q.OrderBy = &orderBy
	}
	return q
}

// Validate checks field ranges. Absent fields are always valid.
func (q QueryParams) Validate() error {
	if q.StartTime != nil && strings.TrimSpace(*q.StartTime) == "" {
		return errors.New("starttime cannot be blank")
	}
	if q.EndTime != nil && strings.TrimSpace(*q.EndTime) == "" {
		return errors.New("endtime cannot be blank")
	}
	if q.Limit != nil && (*q.Limit <= 0 || *q.Limit > MaxQueryLimit) {
		return fmt.Errorf("limit must be between 1 and %d", MaxQueryLimit)
	}
	if q.OrderBy != nil && !IsValidOrderBy(*q.OrderBy) {
		return fmt.Errorf("invalid orderby: %s", *q.OrderBy)
	}
	if q.MinMagnitude != nil && !isFinite(*q.MinMagnitude) {
		return errors.New("minmagnitude must be a finite number")
	}
	if q.MaxMagnitude != nil && !isFinite(*q.MaxMagnitude) {
		return errors.New("maxmagnitude must be a finite number")
	}
	if q.MinMagnitude != nil && q.MaxMagnitude != nil && *q.MinMagnitude > *q.MaxMagnitude {
		return errors.New("minmagnitude cannot exceed maxmagnitude")
	}
	return nil
}

// Params returns the defined fields in declaration order. The order is fixed
// and independent of how the request presented them.
func (q QueryParams) Params() []Param {
	params := make([]Param, 0, 6)
	if q.StartTime != nil {
		params = append(params, Param{ParamStartTime, *q.StartTime})
	}
	if q.EndTime != nil {
		params = append(params, Param{ParamEndTime, *q.EndTime})
	}
	if q.MinMagnitude != nil {
		params = append(params, Param{ParamMinMagnitude, FormatNumber(*q.MinMagnitude)})
	}
	if q.MaxMagnitude != nil {
		params = append(params, Param{ParamMaxMagnitude, FormatNumber(*q.MaxMagnitude)})
	}
	if q.Limit != nil {
		params = append(params, Param{ParamLimit, strconv.Itoa(*q.Limit)})
	}
	if q.OrderBy != nil {
		params = append(params, Param{ParamOrderBy, *q.OrderBy})
	}
	return params
}

// FormatNumber renders f in its shortest decimal form: 5 for 5.0, 4.5 for 4.5.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseQueryParams builds QueryParams from raw request values. Empty values
// are treated as absent.
func ParseQueryParams(get func(string) string) (QueryParams, error) {
	var q QueryParams

	if v := get(ParamStartTime); v != "" {
		q.StartTime = &v
	}
	if v := get(ParamEndTime); v != "" {
		q.EndTime = &v
	}
	if v := get(ParamMinMagnitude); v != "" {
		f, err := parseMagnitude(ParamMinMagnitude, v)
		if err != nil {
			return q, err
		}
		q.MinMagnitude = &f
	}
	if v := get(ParamMaxMagnitude); v != "" {
		f, err := parseMagnitude(ParamMaxMagnitude, v)
		if err != nil {
			return q, err
		}
		q.MaxMagnitude = &f
	}
	if v := get(ParamLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %q", v)
		}
		q.Limit = &n
	}
	if v := get(ParamOrderBy); v != "" {
		q.OrderBy = &v
	}

	return q, nil
}

// parseMagnitude accepts finite decimal numbers only. strconv also parses
// NaN and Inf spellings, which the event service rejects.
func parseMagnitude(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !isFinite(f) {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return f, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
