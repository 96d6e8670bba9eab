package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/speechgate/observability"
)

// QueueSource reports the scheduler's queue figures. ok is false until a
// scheduler is attached.
type QueueSource func() (stats observability.QueueStats, ok bool)

// Metrics returns a snapshot of the process and, when attached, the
// transcription queue. The full instrument set is exported over OTLP.
func Metrics(queue QueueSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"heap_mb": mem.HeapAlloc >> 20,
				"sys_mb":  mem.Sys >> 20,
				"gc_runs": mem.NumGC,
			},
		}
		if queue != nil {
			if qs, ok := queue(); ok {
				body["queue"] = gin.H{
					"in_queue":      qs.InQueue,
					"in_flight":     qs.InFlight,
					"max_in_flight": qs.MaxInFlight,
				}
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
