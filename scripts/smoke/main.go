// Command smoke probes a running deployment of the academic API and reports
// per-endpoint status and latency. Intended for post-deploy verification.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type probeResult struct {
	Target   target
	Status   int
	Duration time.Duration
	Err      error
}

func defaultTargets() []target {
	return []target{
		{Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK, Critical: true},
		{Method: http.MethodGet, Path: "/metrics", Expect: http.StatusOK},
		{Method: http.MethodGet, Path: "/api/v1/academic-years", Expect: http.StatusUnauthorized, Critical: true},
		{Method: http.MethodGet, Path: "/api/v1/students", Expect: http.StatusUnauthorized},
		{Method: http.MethodGet, Path: "/api/v1/progressions/analytics", Expect: http.StatusUnauthorized},
	}
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file (optional)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var failures, criticalFailures int

	for _, t := range targets {
		result := probe(client, base, t)
		line := fmt.Sprintf("%-6s %-40s", t.Method, t.Path)
		switch {
		case result.Err != nil:
			fmt.Printf("%s ERROR %v\n", line, result.Err)
		case result.Status != t.Expect:
			fmt.Printf("%s FAIL  got=%d want=%d (%s)\n", line, result.Status, t.Expect, result.Duration.Round(time.Millisecond))
		default:
			fmt.Printf("%s OK    %d (%s)\n", line, result.Status, result.Duration.Round(time.Millisecond))
			continue
		}
		failures++
		if t.Critical {
			criticalFailures++
		}
	}

	fmt.Printf("\n%d/%d probes failed, %d critical\n", failures, len(targets), criticalFailures)
	if criticalFailures > 0 {
		os.Exit(1)
	}
}

func probe(client *http.Client, base string, t target) probeResult {
	url := strings.TrimRight(base, "/") + t.Path
	req, err := http.NewRequest(t.Method, url, nil)
	if err != nil {
		return probeResult{Target: t, Err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return probeResult{Target: t, Err: err, Duration: duration}
	}
	defer resp.Body.Close()
	return probeResult{Target: t, Status: resp.StatusCode, Duration: duration}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultTargets(), nil
		}
		return nil, err
	}
	var cfg struct {
		Targets []target `json:"targets"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return defaultTargets(), nil
	}
	for i := range cfg.Targets {
		if cfg.Targets[i].Expect == 0 {
			cfg.Targets[i].Expect = http.StatusOK
		}
	}
	return cfg.Targets, nil
}
