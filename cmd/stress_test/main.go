package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/manifest-sync/internal/adapter/handler"
	"github.com/rl1809/manifest-sync/internal/core/domain"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	secret := flag.String("secret", "", "shared secret sent in the Pass header")
	totalRequests := flag.Int("requests", 50, "number of concurrent sync requests")
	recordsPerRequest := flag.Int("records", 20, "chamber readings per request")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required")
	}

	// Every request repeats the same keys, so the table must end with
	// exactly recordsPerRequest rows no matter how the upserts interleave.
	keys := make([]string, *recordsPerRequest)
	for i := range keys {
		keys[i] = "stress-" + uuid.NewString()
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var okCount, partialCount, failCount atomic.Int32
	var processed atomic.Int64

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			resp, err := sendBatch(client, *baseURL, *secret, keys, n)
			if err != nil {
				log.Printf("request %d: %v", n, err)
				failCount.Add(1)
				return
			}

			processed.Add(int64(resp.Procesados[domain.TableChamberReadings]))
			if resp.Status == domain.SyncStatusOK {
				okCount.Add(1)
			} else {
				partialCount.Add(1)
				log.Printf("request %d: partial: %v", n, resp.Errors)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Requests:         %d\n", *totalRequests)
	fmt.Printf("Records/request:  %d\n", *recordsPerRequest)
	fmt.Printf("OK:               %d\n", okCount.Load())
	fmt.Printf("Partial:          %d\n", partialCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Rows processed:   %d\n", processed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	want := int64(*totalRequests * *recordsPerRequest)
	if okCount.Load() == int32(*totalRequests) && processed.Load() == want {
		fmt.Printf("PASS: all %d upserts accepted\n", want)
	} else {
		fmt.Printf("FAIL: expected %d ok requests and %d rows, got %d/%d\n",
			*totalRequests, want, okCount.Load(), processed.Load())
	}
}

func sendBatch(client *http.Client, baseURL, secret string, keys []string, n int) (*handler.SyncHTTPResponse, error) {
	records := make([]map[string]any, len(keys))
	for i, key := range keys {
		records[i] = map[string]any{
			"uuid":        key,
			"peso_neto":   float64(n) + float64(i)/100,
			"estado":      1,
			"tanque":      fmt.Sprintf("T-%d", i%4),
			"observacion": "ignored by the server",
		}
	}

	body, err := json.Marshal(map[string]any{"camaras_frigorifico": records})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/sync", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.SecretHeader, secret)

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post sync: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var out handler.SyncHTTPResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
