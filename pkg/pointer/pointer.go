package pointer

// To returns a pointer to a copy of value
func To[T any](value T) *T {
	return &value
}

// ValueOr dereferences value, falling back to defaultValue when it's nil
func ValueOr[T any](value *T, defaultValue T) T {
	if value == nil {
		return defaultValue
	}
	return *value
}
