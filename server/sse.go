package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleJobEvents streams job progress to the client as Server-Sent Events.
// The stream ends when the relay releases the job's channel (terminal event)
// or the client disconnects.
func (s *Server) handleJobEvents(c *gin.Context) {
	jobID := c.Param("jobId")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported", "code": "internal"})
		return
	}

	ch := s.relay.Subscribe(jobID)
	defer s.relay.Unsubscribe(jobID, ch)

	s.metrics.SSEConnected()
	defer s.metrics.SSEDisconnected()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"job_id\":%q}\n\n", jobID)
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				fmt.Fprint(c.Writer, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to serialize progress event job_id=%s err=%v", jobID, err)
				continue
			}
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
