package query

import (
	"errors"
	"strings"
)

// ErrQueryNotSupported is returned when a query is given an option it
// can't honor, or an option value outside of what it accepts.
var ErrQueryNotSupported = errors.New("the requested query option is not supported")

// Direction is the order records are returned in, by id
type Direction uint8

const (
	Ascending Direction = iota
	Descending
)

// ParseDirection parses "asc" or "desc", ignoring case
func ParseDirection(val string) (Direction, error) {
	switch strings.ToLower(val) {
	case "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	}
	return 0, ErrQueryNotSupported
}

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Capability marks an option a store query accepts
type Capability uint8

const (
	CanLimitResults Capability = 1 << iota
	CanSortBy
	CanQueryByCursor
	CanFilterBy
)

// Options collects the paging and filtering of a store query. Supported
// is set by the store before the caller's options are applied.
type Options struct {
	Supported Capability

	Direction Direction
	Limit     uint64
	Cursor    Cursor
	FilterBy  Filter
}

type Option func(*Options) error

// Apply applies opts in order, failing on the first option the query
// doesn't support
func (o *Options) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

func requires(capability Capability, set func(*Options)) Option {
	return func(o *Options) error {
		if o.Supported&capability != capability {
			return ErrQueryNotSupported
		}
		set(o)
		return nil
	}
}

func WithFilter(val Filter) Option {
	return requires(CanFilterBy, func(o *Options) { o.FilterBy = val })
}

func WithDirection(val Direction) Option {
	return requires(CanSortBy, func(o *Options) { o.Direction = val })
}

func WithLimit(val uint64) Option {
	return requires(CanLimitResults, func(o *Options) { o.Limit = val })
}

func WithCursor(val Cursor) Option {
	return requires(CanQueryByCursor, func(o *Options) { o.Cursor = val })
}
