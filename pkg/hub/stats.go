package hub

import (
	"sync/atomic"
	"time"
)

// Stats provides statistics about the hub
type Stats struct {
	Connections   int     `json:"connections"`
	Boards        int     `json:"boards"`
	MessagesSent  int64   `json:"messages_sent"`
	Broadcasts    int64   `json:"broadcasts"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	connections, boards := h.reg.Counts()
	return Stats{
		Connections:   connections,
		Boards:        boards,
		MessagesSent:  atomic.LoadInt64(&h.messagesSent),
		Broadcasts:    atomic.LoadInt64(&h.broadcasts),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
}
