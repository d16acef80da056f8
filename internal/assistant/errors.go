package assistant

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrThrottled is matched by every *ThrottleError.
	ErrThrottled = errors.New("assistant: request limit reached")

	// ErrEmptyPrompt is returned by Ask for a blank prompt.
	ErrEmptyPrompt = errors.New("assistant: prompt is empty")

	// ErrEmptyQuestion is returned by AskQuestion for a blank question.
	ErrEmptyQuestion = errors.New("assistant: question is empty")
)

// ThrottleError reports a rejected ask and when the next one would be
// admitted.
type ThrottleError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("assistant: request limit of %d per %s reached, retry in %s",
		e.Limit, e.Window, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrThrottled) true.
func (e *ThrottleError) Is(target error) bool {
	return target == ErrThrottled
}
