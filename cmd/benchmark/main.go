// Benchmark tool for load-testing CreditX with submission batches.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -records 10000
//   go run cmd/benchmark/main.go -csv /path/to/submissions.csv -workers 20
//
// This tool:
//   1. Reads submissions from a CSV file, or generates a synthetic book
//   2. Sends them in batches to the triage and pricing endpoints
//   3. Reports latency, throughput, and score/band distributions
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/ingest"
)

var sectors = []domain.Sector{
	domain.SectorRetail,
	domain.SectorManufacturing,
	domain.SectorLogistics,
	domain.SectorAgri,
	domain.SectorServices,
	domain.SectorOther,
}

var brokers = []string{
	"Marsh", "Aon", "WTW", "Gallagher", "Lockton",
	"Howden", "BrownBrown", "Acrisure", "Hub", "Truist",
}

// Metrics tracks benchmark results across workers.
type Metrics struct {
	TotalBatches   int64
	TotalRecords   int64
	TotalErrors    int64
	LatencyMicros  int64
	ReferralsSeen  int64
	ScoreSumMilli  int64

	mu         sync.Mutex
	scoreBins  [5]int64          // 0-20, 20-40, 40-60, 60-80, 80-100
	bandCounts map[string]int64  // pricing band code -> count
	reasons    map[string]int64  // reason/adjustment string -> count
}

func main() {
	csvPath := flag.String("csv", "", "Path to a submissions CSV file (synthetic data when empty)")
	baseURL := flag.String("url", "http://localhost:8080", "CreditX base URL")
	records := flag.Int("records", 10000, "Synthetic submissions to generate when no CSV is given")
	batchSize := flag.Int("batch", 50, "Submissions per request")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	pricingToo := flag.Bool("pricing", true, "Also benchmark the pricing endpoint")
	seed := flag.Int64("seed", 42, "Seed for the synthetic generator")
	flag.Parse()

	fmt.Println("================================================================")
	fmt.Println("           CREDITX BENCHMARK - Submission Batches")
	fmt.Println("================================================================")
	fmt.Printf("\nCreditX URL: %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Batch Size:  %d\n", *batchSize)

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: CreditX not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure CreditX is running:")
		fmt.Println("  go run cmd/creditx/main.go")
		os.Exit(1)
	}
	fmt.Println("CreditX is healthy")

	var subs []domain.Submission
	if *csvPath != "" {
		fmt.Printf("\nReading submissions from %s...\n", *csvPath)
		file, err := os.Open(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to open CSV: %v\n", err)
			os.Exit(1)
		}
		subs, err = ingest.ParseSubmissionsCSV(*csvPath, file)
		file.Close()
		if err != nil {
			fmt.Printf("ERROR: Failed to parse CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("\nGenerating %d synthetic submissions...\n", *records)
		subs = syntheticBook(*records, *seed)
	}
	fmt.Printf("Loaded %d submissions\n", len(subs))

	batches := toBatches(subs, *batchSize)

	fmt.Printf("\nTriage benchmark: %d batches across %d workers...\n", len(batches), *workers)
	start := time.Now()
	triage := runBenchmark(batches, *baseURL+"/triage/underwriting", *workers, false)
	printScoreResults("TRIAGE", triage, time.Since(start))

	if *pricingToo {
		fmt.Printf("\nPricing benchmark: %d batches across %d workers...\n", len(batches), *workers)
		start = time.Now()
		priced := runBenchmark(batches, *baseURL+"/pricing/suggest", *workers, true)
		printPricingResults(priced, time.Since(start))
	}
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// syntheticBook generates a deterministic mixed-quality submission book.
func syntheticBook(n int, seed int64) []domain.Submission {
	rng := rand.New(rand.NewSource(seed))
	subs := make([]domain.Submission, 0, n)

	for i := 0; i < n; i++ {
		sub := domain.Submission{
			SubmissionID:       fmt.Sprintf("bench_%06d", i),
			Broker:             brokers[rng.Intn(len(brokers))],
			Sector:             sectors[rng.Intn(len(sectors))],
			ExposureLimit:      float64(rng.Intn(100)+1) * 100000,
			DebtorDays:         float64(rng.Intn(180)),
			FinancialsAttached: rng.Float64() < 0.6,
			YearsTrading:       rng.Float64() * 40,
			BrokerHitRate:      rng.Float64(),
			RequestedCovPct:    0.5 + rng.Float64()*0.5,
			HasJudgements:      rng.Float64() < 0.15,
		}
		subs = append(subs, sub)
	}
	return subs
}

func toBatches(subs []domain.Submission, size int) []domain.SubmissionBatch {
	if size <= 0 {
		size = 50
	}
	var batches []domain.SubmissionBatch
	for i := 0; i < len(subs); i += size {
		end := i + size
		if end > len(subs) {
			end = len(subs)
		}
		batches = append(batches, domain.SubmissionBatch{Submissions: subs[i:end]})
	}
	return batches
}

func runBenchmark(batches []domain.SubmissionBatch, url string, numWorkers int, pricing bool) *Metrics {
	metrics := &Metrics{
		bandCounts: make(map[string]int64),
		reasons:    make(map[string]int64),
	}

	work := make(chan domain.SubmissionBatch, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for batch := range work {
				start := time.Now()
				err := sendBatch(client, url, batch, metrics, pricing)
				atomic.AddInt64(&metrics.LatencyMicros, time.Since(start).Microseconds())
				atomic.AddInt64(&metrics.TotalBatches, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					continue
				}
				atomic.AddInt64(&metrics.TotalRecords, int64(len(batch.Submissions)))
			}
		}()
	}

	for _, batch := range batches {
		work <- batch
	}
	close(work)
	wg.Wait()

	return metrics
}

func sendBatch(client *http.Client, url string, batch domain.SubmissionBatch, metrics *Metrics, pricing bool) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if pricing {
		var result domain.PricingResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return err
		}
		metrics.recordPricing(&result)
		return nil
	}

	var result domain.ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	metrics.recordScores(&result)
	return nil
}

func (m *Metrics) recordScores(resp *domain.ScoreResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range resp.Scores {
		bin := int(s.Score * 5)
		if bin > 4 {
			bin = 4
		}
		if bin < 0 {
			bin = 0
		}
		m.scoreBins[bin]++
		m.ScoreSumMilli += int64(s.Score * 1000)
		if len(s.Flags) > 0 {
			m.ReferralsSeen++
		}
		for _, reason := range s.Reasons {
			m.reasons[reason]++
		}
	}
}

func (m *Metrics) recordPricing(resp *domain.PricingResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range resp.Suggestions {
		m.bandCounts[s.BandCode]++
		for _, adj := range s.Adjustments {
			m.reasons[adj]++
		}
	}
}

func printScoreResults(label string, m *Metrics, duration time.Duration) {
	fmt.Printf("\n---------------- %s RESULTS ----------------\n", label)
	printThroughput(m, duration)

	fmt.Printf("\nSCORE DISTRIBUTION\n")
	labels := []string{"0.0-0.2", "0.2-0.4", "0.4-0.6", "0.6-0.8", "0.8-1.0"}
	for i, count := range m.scoreBins {
		fmt.Printf("   %s: %8d\n", labels[i], count)
	}
	if m.TotalRecords > 0 {
		mean := float64(m.ScoreSumMilli) / 1000 / float64(m.TotalRecords)
		fmt.Printf("   Mean score:     %.3f\n", mean)
		fmt.Printf("   Referral flags: %d (%.2f%%)\n",
			m.ReferralsSeen, 100*float64(m.ReferralsSeen)/float64(m.TotalRecords))
	}

	printTopReasons(m, "TOP REASONS")
}

func printPricingResults(m *Metrics, duration time.Duration) {
	fmt.Printf("\n---------------- PRICING RESULTS ----------------\n")
	printThroughput(m, duration)

	fmt.Printf("\nBAND DISTRIBUTION\n")
	codes := make([]string, 0, len(m.bandCounts))
	for code := range m.bandCounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("   Band %s: %8d\n", code, m.bandCounts[code])
	}

	printTopReasons(m, "TOP ADJUSTMENTS")
}

func printThroughput(m *Metrics, duration time.Duration) {
	fmt.Printf("   Batches:        %d\n", m.TotalBatches)
	fmt.Printf("   Records:        %d\n", m.TotalRecords)
	fmt.Printf("   Errors:         %d\n", m.TotalErrors)
	fmt.Printf("   Total Duration: %v\n", duration.Round(time.Millisecond))
	if m.TotalBatches > 0 {
		avgMs := float64(m.LatencyMicros) / 1000 / float64(m.TotalBatches)
		fmt.Printf("   Avg Latency:    %.2f ms/batch\n", avgMs)
	}
	if duration.Seconds() > 0 {
		fmt.Printf("   Throughput:     %.2f records/sec\n", float64(m.TotalRecords)/duration.Seconds())
	}
}

func printTopReasons(m *Metrics, header string) {
	type entry struct {
		reason string
		count  int64
	}
	entries := make([]entry, 0, len(m.reasons))
	for reason, count := range m.reasons {
		entries = append(entries, entry{reason, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].reason < entries[j].reason
	})

	fmt.Printf("\n%s\n", header)
	for i, e := range entries {
		if i >= 8 {
			break
		}
		fmt.Printf("   %6d  %s\n", e.count, e.reason)
	}
}
