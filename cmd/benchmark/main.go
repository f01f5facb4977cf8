// Benchmark tool for testing Magpie against labeled news data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/labeled.csv -url http://localhost:8080
//
// The CSV needs a "text" column and a "label" column (FAKE/REAL or 1/0).
//
// This tool:
//  1. Reads labeled news texts
//  2. Sends each text to Magpie for analysis
//  3. Compares Magpie's verdict (FAKE/REAL) with the actual labels
//  4. Calculates precision, recall, F1-score, and confusion matrix
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
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledText represents a row from the labeled dataset.
type LabeledText struct {
	Text   string
	IsFake bool
}

// AnalyzeRequest is the Magpie API request format.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is the Magpie API response format.
type AnalyzeResponse struct {
	AnalysisID string `json:"analysisId"`
	Verdict    struct {
		FakeScore  float64 `json:"fake_score"`
		Confidence float64 `json:"confidence"`
		Label      string  `json:"label"` // "FAKE", "REAL", or "UNKNOWN"
		Method     string  `json:"method"`
	} `json:"verdict"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fake labeled FAKE
	FalsePositives int64 // Real labeled FAKE
	TrueNegatives  int64 // Real labeled REAL
	FalseNegatives int64 // Fake labeled REAL (missed!)

	TotalProcessed int64
	TotalFake      int64
	TotalReal      int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled CSV file (text,label columns)")
	baseURL := flag.String("url", "http://localhost:8080", "Magpie base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum texts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fakeOnly := flag.Bool("fake-only", false, "Only test fake-labeled texts")
	verbose := flag.Bool("verbose", false, "Print each text result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/labeled.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          MAGPIE BENCHMARK - Fake News Detection               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Magpie URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fake Only:   %v\n", *fakeOnly)
	fmt.Println()

	// Check Magpie is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Magpie not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Magpie is running:")
		fmt.Println("  cd magpie && go run cmd/magpie/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Magpie is healthy")

	// Read labeled data
	fmt.Printf("\nReading labeled data from %s...\n", *csvPath)
	texts, err := readLabeledCSV(*csvPath, *limit, *fakeOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d texts\n", len(texts))

	// Count fake vs real
	fakeCount := 0
	for _, item := range texts {
		if item.IsFake {
			fakeCount++
		}
	}
	fmt.Printf("  - Fake: %d (%.2f%%)\n", fakeCount, 100*float64(fakeCount)/float64(len(texts)))
	fmt.Printf("  - Real: %d (%.2f%%)\n", len(texts)-fakeCount, 100*float64(len(texts)-fakeCount)/float64(len(texts)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(texts, *baseURL, *tenantID, *workers, *verbose)
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

func readLabeledCSV(path string, limit int, fakeOnly bool) ([]LabeledText, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	textCol, labelCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("CSV must have 'text' and 'label' columns, got: %v", header)
	}

	var texts []LabeledText

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		if len(record) <= textCol || len(record) <= labelCol {
			continue
		}

		text := strings.TrimSpace(record[textCol])
		if text == "" {
			continue
		}

		label := strings.ToUpper(strings.TrimSpace(record[labelCol]))
		isFake := label == "FAKE" || label == "1" || label == "TRUE"

		if fakeOnly && !isFake {
			continue
		}

		texts = append(texts, LabeledText{Text: text, IsFake: isFake})

		if limit > 0 && len(texts) >= limit {
			break
		}
	}

	return texts, nil
}

func runBenchmark(texts []LabeledText, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledText, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for item := range work {
				start := time.Now()
				result, err := analyzeText(client, baseURL, tenantID, item.Text)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				// Track actual labels
				if item.IsFake {
					atomic.AddInt64(&metrics.TotalFake, 1)
				} else {
					atomic.AddInt64(&metrics.TotalReal, 1)
				}

				// Calculate confusion matrix
				predicted := result.Verdict.Label == "FAKE"
				actual := item.IsFake

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
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					preview := item.Text
					if len(preview) > 50 {
						preview = preview[:50]
					}
					fmt.Printf("%s %-50s | Fake: %-5v | Magpie: %-7s (%.3f)\n",
						status,
						preview,
						item.IsFake,
						result.Verdict.Label,
						result.Verdict.FakeScore,
					)
				}
			}
		}()
	}

	// Send work
	for _, item := range texts {
		work <- item
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func analyzeText(client *http.Client, baseURL, tenantID, text string) (*AnalyzeResponse, error) {
	body, err := json.Marshal(AnalyzeRequest{Text: text})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
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

	var result AnalyzeResponse
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
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fake:       %d\n", m.TotalFake)
	fmt.Printf("   Total Real:       %d\n", m.TotalReal)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    FAKE        REAL")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           R  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
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

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of FAKE verdicts, how many were actually fake)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fake texts, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFake > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFake) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFake) * 100
		fmt.Printf("   Fake Detected:     %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFake, detectionRate)
		fmt.Printf("   Fake Missed:       %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFake, missRate)
	}
	if m.TotalReal > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalReal) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalReal, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f texts/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fake texts")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fake texts")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fakes being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fake texts are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - FAKE verdicts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
