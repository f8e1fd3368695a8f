package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	ImagesAnalyzed     uint64
	ImagesFlagged      uint64
	BatchesSaved       uint64
	SavesFailed        uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementImagesAnalyzed adds n classified images to the counter
func IncrementImagesAnalyzed(n int) {
	atomic.AddUint64(&globalMetrics.ImagesAnalyzed, uint64(n))
}

// IncrementImagesFlagged adds n infractor verdicts to the counter
func IncrementImagesFlagged(n int) {
	atomic.AddUint64(&globalMetrics.ImagesFlagged, uint64(n))
}

// IncrementBatchesSaved increments the saved-batch counter
func IncrementBatchesSaved() {
	atomic.AddUint64(&globalMetrics.BatchesSaved, 1)
}

// IncrementSavesFailed increments the failed-save counter
func IncrementSavesFailed() {
	atomic.AddUint64(&globalMetrics.SavesFailed, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"images_analyzed":      atomic.LoadUint64(&globalMetrics.ImagesAnalyzed),
		"images_flagged":       atomic.LoadUint64(&globalMetrics.ImagesFlagged),
		"batches_saved":        atomic.LoadUint64(&globalMetrics.BatchesSaved),
		"saves_failed":         atomic.LoadUint64(&globalMetrics.SavesFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
		atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
		defer atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
