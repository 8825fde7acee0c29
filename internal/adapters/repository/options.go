package repository

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSubscriberBuffer sets the per-subscriber channel buffer.
func WithSubscriberBuffer(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.subBuffer = n
		}
	}
}
