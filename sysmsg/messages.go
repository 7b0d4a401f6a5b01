package sysmsg

import "time"

// Timeout is handed to a RecvWithTimeout handler when no message arrived in time
type Timeout struct {
	Duration time.Duration
}
