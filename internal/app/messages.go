package app

import (
	"time"

	"groundlink.klederson.com/internal/link"
)

// TickMsg triggers a frame refresh.
type TickMsg time.Time

// LinkStatusMsg carries a connect or disconnect from the link worker.
type LinkStatusMsg struct {
	Status link.Status
}
