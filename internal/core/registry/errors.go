package registry

import "errors"

var (
	ErrInvalidDescriptor = errors.New("invalid component descriptor")
	ErrAlreadyRegistered = errors.New("component type already registered")
	ErrUnknownType       = errors.New("unknown component type")
	ErrPointerType       = errors.New("component type contains Go pointers")
	ErrNotSerializable   = errors.New("component type has no serialize hook")
)
