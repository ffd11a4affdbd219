package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/mirclinic/clinic-core/internal/config"
	"github.com/mirclinic/clinic-core/internal/db"
	"github.com/mirclinic/clinic-core/internal/schedule"
)

// The simulator hammers a single (date, slot) pair with concurrent booking
// requests and then checks the store directly: the active count must never
// exceed the configured capacity, no matter how many workers raced.

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Attempts    int
	Date        string
	Slot        string
	PostgresDSN string
	Capacity    int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	log.Printf("config: workers=%d attempts=%d target=%s %s capacity=%d",
		cfg.Workers, cfg.Attempts, cfg.Date, cfg.Slot, cfg.Capacity)

	client := &http.Client{Timeout: 10 * time.Second}
	var metrics OperationMetrics

	gofakeit.Seed(time.Now().UnixNano())

	var wg sync.WaitGroup
	attempts := make(chan int)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range attempts {
				doBooking(client, cfg, &metrics)
			}
		}()
	}

	for i := 0; i < cfg.Attempts; i++ {
		attempts <- i
	}
	close(attempts)
	wg.Wait()

	printReport(cfg, &metrics)

	booked, err := countBooked(cfg)
	if err != nil {
		log.Fatalf("verify booked count: %v", err)
	}

	fmt.Printf("Store check: %d active reservations for %s %s (capacity %d)\n",
		booked, cfg.Date, cfg.Slot, cfg.Capacity)
	if booked > cfg.Capacity {
		log.Fatalf("CAPACITY VIOLATED: %d > %d", booked, cfg.Capacity)
	}
	log.Println("capacity held under contention")
}

func doBooking(client *http.Client, cfg SimConfig, metrics *OperationMetrics) {
	reqBody := map[string]any{
		"name":          gofakeit.Name(),
		"contact":       fmt.Sprintf("010-%04d-%04d", gofakeit.Number(0, 9999), gofakeit.Number(0, 9999)),
		"date":          cfg.Date,
		"slot":          cfg.Slot,
		"type":          "reservation",
		"consent_given": true,
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ := http.NewRequest("POST", cfg.APIBaseURL+"/reservations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	metrics.Record(latency, success, conflict)
}

func countBooked(cfg SimConfig) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	var count int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE date = $1 AND slot = $2 AND status IN ('new', 'confirmed')
	`, cfg.Date, cfg.Slot).Scan(&count)
	return count, err
}

func printReport(cfg SimConfig, metrics *OperationMetrics) {
	total := atomic.LoadInt64(&metrics.Total)
	success := atomic.LoadInt64(&metrics.Success)
	conflict := atomic.LoadInt64(&metrics.Conflict)
	errs := atomic.LoadInt64(&metrics.Error)
	avg, min, max, p95 := metrics.Stats()

	fmt.Println("\nCONTENTION REPORT")
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Attempts: %d\n", total)
	fmt.Printf("Created: %d (%.1f%%)\n", success, pct(success, total))
	fmt.Printf("Rejected (full/contended/duplicate): %d (%.1f%%)\n", conflict, pct(conflict, total))
	if errs > 0 {
		fmt.Printf("Errors: %d (%.1f%%)\n", errs, pct(errs, total))
	}
	fmt.Printf("Latency: avg=%s min=%s max=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond),
		max.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func pct(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	// Default to the first slot of the next ordinary weekday
	defaultDate := nextOpenDate(baseCfg)

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:     getInt("SIM_WORKERS", 50),
		Attempts:    getInt("SIM_ATTEMPTS", 500),
		Date:        getEnv("SIM_DATE", defaultDate),
		Slot:        getEnv("SIM_SLOT", baseCfg.OpenTime),
		PostgresDSN: baseCfg.PostgresDSN,
		Capacity:    baseCfg.SlotCapacity,
	}

	if cfg.Workers <= 0 || cfg.Attempts <= 0 {
		log.Fatal("SIM_WORKERS and SIM_ATTEMPTS must be > 0")
	}

	return cfg
}

func nextOpenDate(cfg config.Config) string {
	day := time.Now().UTC().AddDate(0, 0, 1)
	for day.Weekday() == cfg.ClosedWeekday || day.Weekday() == cfg.PartialWeekday {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format(schedule.DateLayout)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
