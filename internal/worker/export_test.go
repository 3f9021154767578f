package worker

import "time"

// SetBackoff shortens the retry pause in tests.
func (a *ReceiptArchiver) SetBackoff(d time.Duration) { a.backoff = d }
