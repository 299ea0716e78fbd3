package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the compile service receives a request.
type HTTPStart struct {
	RequestID int64
	Request   *http.Request
}

// HTTPFinish is emitted after the handler has written its response.
// Violations counts the checker violations reported to the client.
type HTTPFinish struct {
	RequestID  int64
	Request    *http.Request
	Status     int
	Violations int
	Duration   time.Duration
}
