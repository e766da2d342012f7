package engine

import "errors"

var (
	ErrInvalidConfig = errors.New("engine: invalid config")
	ErrUnknownSpace  = errors.New("engine: unknown space")
	ErrSpaceExists   = errors.New("engine: space already joined")
	ErrReservedSpace = errors.New("engine: reserved space")
	ErrPeerUnknown   = errors.New("engine: peer unknown")
	ErrInvalidEntry  = errors.New("engine: invalid entry")
	ErrClosed        = errors.New("engine: closed")
)
