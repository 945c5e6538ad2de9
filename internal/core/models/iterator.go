package models

// Cursor is a restartable, bidirectional walk over a finite collection.
// Next and Prev report whether the cursor landed on a valid item.
// Reset moves the cursor before the first item, SeekEnd after the last one.
type Cursor interface {
	Next() bool
	Prev() bool
	Reset()
	SeekEnd()
}

// DualIterator is a Cursor that yields a key alongside each item.
type DualIterator[K comparable, T any] interface {
	Cursor
	Key() K
	Item() T
}
