package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var services = []string{"checkout", "search", "billing", "inventory", "auth"}
var levels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

func randomBatch(workerID, size int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"logs":[`)
	traceID := uuid.NewString()
	for i := 0; i < size; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf,
			`{"service_name":"%s","log_level":"%s","message":"load test event from worker %d","trace_id":"%s","response_time_ms":%.1f,"timestamp":"%s"}`,
			services[rand.Intn(len(services))],
			levels[rand.Intn(len(levels))],
			workerID,
			traceID,
			rand.Float64()*500,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/api/v1/logs/ingest", "Target URL for ingestion")
	apiKey := flag.String("api-key", "supersecretkey", "API Key for authentication")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	batchSize := flag.Int("b", 10, "Entries per batch")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Batch size: %d, Duration: %s, RPS: %d", *concurrency, *batchSize, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, rateLimitedCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx)

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewReader(randomBatch(workerID, *batchSize)))
					if err != nil {
						continue
					}
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-API-Key", *apiKey)

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					switch resp.StatusCode {
					case http.StatusCreated:
						successCount.Add(1)
					case http.StatusTooManyRequests:
						rateLimitedCount.Add(1)
					default:
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + rateLimitedCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (201 Created): %d", successCount.Load())
	log.Printf("Rate Limited (429): %d", rateLimitedCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	log.Printf("Entries Sent: %d", successCount.Load()*int64(*batchSize))
}
