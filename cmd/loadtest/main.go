// Command loadtest drives concurrent search traffic against a running docrank
// instance and prints a latency report. With -seed it first replaces the index
// with a synthetic corpus.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"electricity invoice",
	"rental contract",
	"insurance policy",
	"tax return",
	"bank statement",
	"medical report",
	"car registration",
	"payslip march",
	"warranty receipt",
	"energy bill",
	"mortgage agreement",
	"pension letter",
}

var vocabulary = strings.Fields(`invoice contract policy insurance rental
	electricity energy bill tax return bank statement medical report car
	registration payslip warranty receipt mortgage agreement pension letter
	landlord tenant doctor hospital account amount total due payment`)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the docrank service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results per query")
	seed := flag.Int("seed", 0, "index this many synthetic documents before the run")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     defaultQueries,
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if *seed > 0 {
		if err := seedCorpus(client, cfg.BaseURL, *seed); err != nil {
			fmt.Fprintf(os.Stderr, "seeding corpus: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d documents\n", *seed)
	}

	fmt.Println("=== docrank load test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := run(client, cfg)
	stats.Report(os.Stdout, cfg.Duration)
	if stats.Total() == 0 {
		fmt.Println("WARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func run(client *http.Client, cfg Config) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.BaseURL, url.QueryEscape(query), cfg.Limit)
				stats.Record(search(ctx, client, searchURL))
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

type searchResponse struct {
	Returned int  `json:"returned"`
	CacheHit bool `json:"cache_hit"`
}

func search(ctx context.Context, client *http.Client, rawURL string) Sample {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Sample{Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Sample{Aborted: true}
		}
		return Sample{Latency: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	var body searchResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	s := Sample{Latency: time.Since(start), Status: resp.StatusCode, CacheHit: body.CacheHit}
	if resp.StatusCode == http.StatusOK && decodeErr != nil {
		s.Err = decodeErr
	}
	return s
}

func seedCorpus(client *http.Client, baseURL string, n int) error {
	ids := make([]int64, n)
	texts := make([]string, n)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range n {
		words := make([]string, 8+rng.IntN(24))
		for j := range words {
			words[j] = vocabulary[rng.IntN(len(vocabulary))]
		}
		ids[i] = int64(i + 1)
		texts[i] = strings.Join(words, " ")
	}
	payload, err := json.Marshal(map[string]any{"ids": ids, "texts": texts})
	if err != nil {
		return err
	}
	resp, err := client.Post(baseURL+"/api/v1/index", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index request returned %s", resp.Status)
	}
	return nil
}
