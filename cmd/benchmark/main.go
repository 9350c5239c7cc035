// Benchmark tool for testing Sahayak against labeled profile data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/profiles.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled beneficiary profiles (with expected-eligible labels)
//   2. Sends each profile to Sahayak for an eligibility check
//   3. Compares Sahayak's verdict (eligible for >=1 scheme) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns: user_id, age, gender, caste, occupation,
// annual_income, is_farmer, bpl_card_holder, expected_eligible
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledProfile is a row from the benchmark dataset.
type LabeledProfile struct {
	UserID           string
	Age              int
	Gender           string
	Caste            string
	Occupation       string
	AnnualIncome     float64
	IsFarmer         bool
	BPLCardHolder    bool
	ExpectedEligible bool
}

// CheckRequest is the Sahayak API request format.
type CheckRequest struct {
	UserID  string         `json:"user_id,omitempty"`
	Profile map[string]any `json:"profile"`
}

// CheckResponse is the subset of the Sahayak API response we score on.
type CheckResponse struct {
	CheckID  string `json:"check_id"`
	Eligible []struct {
		SchemeID string  `json:"scheme_id"`
		Score    float64 `json:"score"`
	} `json:"eligible_schemes"`
	NearMisses []struct {
		SchemeID string `json:"scheme_id"`
	} `json:"near_misses"`
	SchemesChecked int `json:"schemes_checked"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Expected-eligible found eligible
	FalsePositives int64 // Expected-ineligible found eligible
	TrueNegatives  int64 // Expected-ineligible found ineligible
	FalseNegatives int64 // Expected-eligible found ineligible (missed benefit!)

	TotalProcessed int64
	TotalEligible  int64
	TotalNearMiss  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled profiles CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Sahayak base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum profiles to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each profile result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/profiles.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         SAHAYAK BENCHMARK - Scheme Eligibility Checks         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Sahayak URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:    %s\n", *tenantID)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	// Check Sahayak is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Sahayak not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Sahayak is running:")
		fmt.Println("  go run cmd/sahayak/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Sahayak is healthy")

	// Read profile data
	fmt.Printf("\nReading profiles from %s...\n", *csvPath)
	profiles, err := readProfilesCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d profiles\n", len(profiles))

	// Count expected eligibility split
	expectedCount := 0
	for _, p := range profiles {
		if p.ExpectedEligible {
			expectedCount++
		}
	}
	fmt.Printf("  - Expected eligible:   %d (%.2f%%)\n", expectedCount, 100*float64(expectedCount)/float64(len(profiles)))
	fmt.Printf("  - Expected ineligible: %d (%.2f%%)\n", len(profiles)-expectedCount, 100*float64(len(profiles)-expectedCount)/float64(len(profiles)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(profiles, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
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

func readProfilesCSV(path string, limit int) ([]LabeledProfile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var profiles []LabeledProfile

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		age, _ := strconv.Atoi(record[colIndex["age"]])
		income, _ := strconv.ParseFloat(record[colIndex["annual_income"]], 64)

		p := LabeledProfile{
			UserID:           record[colIndex["user_id"]],
			Age:              age,
			Gender:           record[colIndex["gender"]],
			Caste:            record[colIndex["caste"]],
			Occupation:       record[colIndex["occupation"]],
			AnnualIncome:     income,
			IsFarmer:         record[colIndex["is_farmer"]] == "1",
			BPLCardHolder:    record[colIndex["bpl_card_holder"]] == "1",
			ExpectedEligible: record[colIndex["expected_eligible"]] == "1",
		}

		profiles = append(profiles, p)

		if limit > 0 && len(profiles) >= limit {
			break
		}
	}

	return profiles, nil
}

func runBenchmark(profiles []LabeledProfile, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledProfile, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for p := range work {
				start := time.Now()
				result, err := checkProfile(client, baseURL, tenantID, p)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", p.UserID, err)
					}
					continue
				}

				if len(result.Eligible) > 0 {
					atomic.AddInt64(&metrics.TotalEligible, 1)
				}
				if len(result.NearMisses) > 0 {
					atomic.AddInt64(&metrics.TotalNearMiss, 1)
				}

				// Calculate confusion matrix
				predicted := len(result.Eligible) > 0
				actual := p.ExpectedEligible

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Age: %3d | Income: ₹%10.0f | Expected: %-5v | Eligible: %2d | NearMiss: %2d\n",
						status,
						p.UserID,
						p.Age,
						p.AnnualIncome,
						p.ExpectedEligible,
						len(result.Eligible),
						len(result.NearMisses),
					)
				}
			}
		}()
	}

	// Send work
	for _, p := range profiles {
		work <- p
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func checkProfile(client *http.Client, baseURL, tenantID string, p LabeledProfile) (*CheckResponse, error) {
	req := CheckRequest{
		UserID: p.UserID,
		Profile: map[string]any{
			"age":             p.Age,
			"gender":          p.Gender,
			"caste":           p.Caste,
			"occupation":      p.Occupation,
			"annual_income":   p.AnnualIncome,
			"is_farmer":       p.IsFarmer,
			"bpl_card_holder": p.BPLCardHolder,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Found Eligible:    %d\n", m.TotalEligible)
	fmt.Printf("   Had Near Misses:   %d\n", m.TotalNearMiss)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 Eligible    Ineligible")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  E  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           I  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 MATCHING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of eligible verdicts, how many were expected)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of expected-eligible, how many did we find)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct verdicts)\n", accuracy)

	// Miss analysis: a false negative here is a person who never learns
	// about a benefit they are entitled to.
	fmt.Printf("\n🔍 COVERAGE ANALYSIS\n")
	expectedEligible := m.TruePositives + m.FalseNegatives
	if expectedEligible > 0 {
		foundRate := float64(m.TruePositives) / float64(expectedEligible) * 100
		missRate := float64(m.FalseNegatives) / float64(expectedEligible) * 100
		fmt.Printf("   Benefits Found:    %d / %d (%.2f%%)\n", m.TruePositives, expectedEligible, foundRate)
		fmt.Printf("   Benefits Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, expectedEligible, missRate)
	}
	expectedIneligible := m.FalsePositives + m.TrueNegatives
	if expectedIneligible > 0 {
		falseGrantRate := float64(m.FalsePositives) / float64(expectedIneligible) * 100
		fmt.Printf("   False Matches:     %d / %d (%.2f%%)\n", m.FalsePositives, expectedIneligible, falseGrantRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f checks/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - finding most entitled beneficiaries")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but some entitled beneficiaries are missed")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - many entitled beneficiaries are missed")
	} else {
		fmt.Println("   ❌ Poor recall - most entitled beneficiaries are missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - eligible verdicts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false matches")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false matches")
	}

	fmt.Println()
}
