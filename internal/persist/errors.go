package persist

import "errors"

var (
	ErrChecksum = errors.New("snapshot checksum mismatch")
	ErrCorrupt  = errors.New("snapshot is corrupt")
)
