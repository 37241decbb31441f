package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrProtocolViolation = fmt.Errorf("protocol violation")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
)
