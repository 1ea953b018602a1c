//go:build rp2350

package pipeline

import "time"

// Pin interrupts run in a real ISR on this target, where a channel send is
// not safe. The consumer polls instead.
const isrPoll = 5 * time.Millisecond
