//go:build !rp2350

package pipeline

import "time"

// Interrupt handlers run on ordinary goroutines here, so TryPush may wake
// the consumer through a channel.
const isrPoll time.Duration = 0
