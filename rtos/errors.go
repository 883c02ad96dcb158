package rtos

import "errors"

var (
	ErrInvalidHandle = errors.New("rtos: invalid task handle")
	ErrPriority      = errors.New("rtos: priority out of range")
	ErrNilFunc       = errors.New("rtos: nil task function")
	ErrStarted       = errors.New("rtos: scheduler already running")
	ErrClosed        = errors.New("rtos: kernel closed")
	ErrNoTasks       = errors.New("rtos: no tasks created")
	ErrNotOwner      = errors.New("rtos: mutex not held by caller")
)
