package runtime

import "errors"

var (
	ErrRuntime  = errors.New("runtime error")
	ErrImagePin = errors.New("image digest pin mismatch")
)
