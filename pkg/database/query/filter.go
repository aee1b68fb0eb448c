package query

// Filter is an optional equality filter on a single numeric column
type Filter struct {
	Value uint64
	Valid bool
}

func NewFilter(value uint64) Filter {
	return Filter{
		Value: value,
		Valid: true,
	}
}
