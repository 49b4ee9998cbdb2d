package state

// Reader reads the store view rebuilt from the deltas received so far.
type Reader interface {
	GetFirst(key string) ([]byte, bool)
	GetLast(key string) ([]byte, bool)
	GetAt(ord uint64, key string) ([]byte, bool)
}

var _ Reader = (*Builder)(nil)
