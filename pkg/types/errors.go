package types

import "errors"

// Layer stack errors.
var (
	ErrEmptyStack     = errors.New("layer stack is empty")
	ErrDuplicateLayer = errors.New("duplicate layer name")
	ErrLayerOrder     = errors.New("layer tiers out of order")
)

// Pipeline and emission errors.
var (
	ErrInvalidTransition = errors.New("invalid pipeline transition")
	ErrPipelineFailed    = errors.New("pipeline has failed")
	ErrNotSealed         = errors.New("configuration is not validated")
	ErrUnknownFormat     = errors.New("unknown artifact format")
)

// Collaborator lookup errors.
var (
	ErrUnknownChip   = errors.New("unknown chip")
	ErrBoardNotFound = errors.New("board descriptor not found")
	ErrRunNotFound   = errors.New("build run not found")
)
