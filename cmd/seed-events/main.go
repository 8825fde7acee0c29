// Command seed-events replays a synthetic derby day against a running
// service. It posts device events to /events with weighted team odds and
// prints the resulting scoreboard and daily aggregate.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBottles = 200
	defaultWorkers = 4
	defaultTimeout = 10 * time.Second
	runTimeout     = 5 * time.Minute
)

// teamOdds weights the synthetic bottle distribution.
var teamOdds = []struct {
	team   string
	weight int
}{
	{"gs", 4},
	{"fb", 3},
	{"ts", 3},
}

type ingestRequest struct {
	EventID string `json:"event_id"`
	Team    string `json:"team"`
	TS      string `json:"ts"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		bottles = flag.Int("bottles", defaultBottles, "Number of bottle events to submit")
		workers = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "Random seed for the team distribution")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	events := make([]ingestRequest, *bottles)
	deviceID := uuid.NewString()[:8]
	for i := range events {
		events[i] = ingestRequest{
			EventID: fmt.Sprintf("seed-%s-%d", deviceID, i),
			Team:    pickTeam(rng),
			TS:      time.Now().UTC().Format(time.RFC3339),
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		failed   int
	)
	jobs := make(chan ingestRequest)
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				if err := postEvent(ctx, client, *baseURL, ev); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	start := time.Now()
	for _, ev := range events {
		jobs <- ev
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("submitted %d events in %s (%d accepted, %d failed)\n",
		*bottles, time.Since(start).Round(time.Millisecond), accepted, failed)

	// Give the ingest workers a moment to drain the queue.
	time.Sleep(500 * time.Millisecond)

	show(ctx, client, *baseURL+"/scoreboard", "scoreboard")
	show(ctx, client, *baseURL+"/stats/daily", "daily stats")
}

func pickTeam(rng *rand.Rand) string {
	total := 0
	for _, o := range teamOdds {
		total += o.weight
	}
	n := rng.Intn(total)
	for _, o := range teamOdds {
		if n < o.weight {
			return o.team
		}
		n -= o.weight
	}
	return teamOdds[0].team
}

func postEvent(ctx context.Context, client *http.Client, baseURL string, ev ingestRequest) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// Backpressure: retry once after a short pause, like a device would.
		time.Sleep(100 * time.Millisecond)
		return postEvent(ctx, client, baseURL, ev)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}
	return nil
}

func show(ctx context.Context, client *http.Client, url, label string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Stderr.WriteString("fetch " + label + " failed: " + err.Error() + "\n")
		return
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s: %s\n", label, bytes.TrimSpace(payload))
}
