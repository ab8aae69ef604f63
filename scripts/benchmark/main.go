package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/productlens/models"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:8080", "productlens API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	runs    = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
	urlFile = flag.String("urls", "", "File with one product URL per line (label<TAB>url also accepted)")
)

type target struct {
	Label string
	URL   string
}

// Default product pages covering the vendor profiles and a generic shop.
var defaultTargets = []target{
	{"Triumph", "https://www.triumph.com/en/product/amourette-charm-wired-bra/10214534.html"},
	{"sloggi", "https://www.sloggi.com/gb/zero-feel-bralette/10198765.html"},
	{"Generic", "https://www.example-shop.com/de/p/lace-bodysuit"},
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	ClientMs   int64  `json:"client_ms"`
	ServerMs   int64  `json:"server_ms"`
	HTTPStatus int    `json:"http_status"`
	Images     int    `json:"images"`
	ImageBytes int    `json:"image_bytes"`
	Source     string `json:"source,omitempty"`
	Language   string `json:"language,omitempty"`
	Category   string `json:"category,omitempty"`
	Success    bool   `json:"success"`
	ErrorCode  string `json:"error_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type urlAverages struct {
	ClientMs float64 `json:"client_ms"`
	ServerMs float64 `json:"server_ms"`
	Images   float64 `json:"images"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	targets := defaultTargets
	if *urlFile != "" {
		var err error
		if targets, err = readTargets(*urlFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *urlFile, err)
			os.Exit(1)
		}
	}

	fmt.Println("=== productlens Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Targets:   %d\n", len(targets))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range targets {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d images  %s  %q\n", rr.ClientMs, rr.Images, rr.Source, rr.Category)
			} else {
				fmt.Printf("FAILED: %s %s\n", rr.ErrorCode, rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

// readTargets parses one URL per line. Blank lines and lines starting with
// "#" are skipped.
func readTargets(path string) ([]target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []target
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if label, u, ok := strings.Cut(line, "\t"); ok {
			out = append(out, target{Label: strings.TrimSpace(label), URL: strings.TrimSpace(u)})
			continue
		}
		out = append(out, target{Label: fmt.Sprintf("#%d", len(out)+1), URL: line})
	}
	return out, sc.Err()
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(url string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.CrawlRequest{URL: url})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/crawl", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var cr models.CrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.ClientMs = time.Since(start).Milliseconds()

	rr.Success = cr.Success
	rr.HTTPStatus = resp.StatusCode
	rr.ServerMs = cr.Timing.TotalMs
	if res := cr.Result; res != nil {
		rr.Images = len(res.Images)
		for _, img := range res.Images {
			rr.ImageBytes += len(img.Payload)
		}
		rr.Source = res.Source
		rr.Language = res.Language
		rr.Category = res.Category
	}
	if cr.Error != nil {
		rr.ErrorCode = cr.Error.Code
		rr.Error = cr.Error.Message
	}
	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.ClientMs += float64(r.ClientMs)
		avg.ServerMs += float64(r.ServerMs)
		avg.Images += float64(r.Images)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.ClientMs /= n
	avg.ServerMs /= n
	avg.Images /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 95))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tServer\tImages\tSource\tCategory\n")
	fmt.Fprintf(w, "───\t───────────\t──────\t──────\t──────\t────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		last := lastSuccess(r.Runs)
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%.1f\t%s\t%s\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.ClientMs),
			int64(r.Averages.ServerMs),
			r.Averages.Images,
			last.Source,
			last.Category,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 95))
}

func lastSuccess(runs []runResult) runResult {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Success {
			return runs[i]
		}
	}
	return runResult{}
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
