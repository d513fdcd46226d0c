package model

import "time"

// Fixed timing and sizing constants of the RYG test.
const (
	SessionDuration = 60 * time.Second
	HoldThreshold   = 200 * time.Millisecond
	MaxResponse     = 5000 * time.Millisecond
	Debounce        = 100 * time.Millisecond
	EndGrace        = 50 * time.Millisecond
	TickInterval    = 16 * time.Millisecond
	HistoryDepth    = 5
	HistogramBins   = 10
)
