// Command probe fetches every configured feed once and reports whether each
// one is reachable and parses, along with what it normalized to. It never
// touches a dedup store.
//
// Usage:
//
//	go run ./cmd/probe
//	go run ./cmd/probe -sources deploy/sources.yaml -notify
//
// Sources come from FEED_SOURCES_FILE and GOV_FEED_URL unless -sources is
// given. -notify sends one test message through NOTIFY_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/feed"
	"github.com/couchcryptid/traffic-incident-monitor/internal/adapter/notify"
	"github.com/couchcryptid/traffic-incident-monitor/internal/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
)

// check tracks pass/fail for one source.
type check struct {
	name     string
	errors   []string
	total    int
	fallback int
	byCat    map[domain.Category]int
	elapsed  time.Duration
}

func (c *check) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *check) passed() bool { return len(c.errors) == 0 }

func main() {
	sourcesFile := flag.String("sources", "", "YAML feed source file (overrides FEED_SOURCES_FILE)")
	timeout := flag.Duration("timeout", 15*time.Second, "per-source fetch timeout")
	sendTest := flag.Bool("notify", false, "send one test notification through NOTIFY_URL")
	flag.Parse()

	os.Exit(run(*sourcesFile, *timeout, *sendTest))
}

func run(sourcesFile string, timeout time.Duration, sendTest bool) int {
	sources, err := loadSources(sourcesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load sources: %v\n", err)
		return 1
	}

	adapters, err := feed.NewAll(sources, feed.Options{
		HTTPClient:    feed.NewHTTPClient(timeout),
		GovAccountKey: os.Getenv("GOV_FEED_ACCOUNT_KEY"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build adapters: %v\n", err)
		return 1
	}

	fmt.Println("=== Traffic Feed Probe ===")
	fmt.Println()

	ctx := context.Background()
	checks := make([]*check, 0, len(adapters)+1)
	for _, a := range adapters {
		checks = append(checks, probe(ctx, a))
	}
	if sendTest {
		checks = append(checks, probeNotify(ctx, sources[0]))
	}

	allPassed := true
	for _, c := range checks {
		status := "\033[32mPASS\033[0m"
		if !c.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(c.errors))
			allPassed = false
		}
		fmt.Printf("  %-36s %-24s %d incidents in %s\n", c.name, status, c.total, c.elapsed.Round(time.Millisecond))
		for _, cat := range sortedCategories(c.byCat) {
			fmt.Printf("      %-20s %d\n", cat, c.byCat[cat])
		}
		if c.fallback > 0 {
			fmt.Printf("      %-20s %d\n", "(fallback class)", c.fallback)
		}
	}

	for _, c := range checks {
		if c.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", c.name)
		for i, e := range c.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll sources passed.")
		return 0
	}
	fmt.Println("\nProbe FAILED.")
	return 1
}

// loadSources applies the same validation as the monitor and never returns an
// empty list.
func loadSources(path string) ([]domain.FeedSource, error) {
	var (
		sources []domain.FeedSource
		err     error
	)
	if path == "" {
		sources, err = config.LoadSources()
	} else {
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
		defer f.Close()
		sources, err = config.ParseSources(f)
	}
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no feed sources configured")
	}
	return sources, nil
}

func probe(ctx context.Context, a feed.Adapter) *check {
	src := a.Source()
	c := &check{name: fmt.Sprintf("%s (%s)", src.ID, src.Kind), byCat: make(map[domain.Category]int)}

	start := time.Now()
	incidents, err := a.Fetch(ctx)
	c.elapsed = time.Since(start)
	if err != nil {
		c.errorf("%v", err)
		return c
	}

	seen := make(map[string]bool, len(incidents))
	for _, inc := range incidents {
		c.total++
		c.byCat[inc.Category]++
		if inc.Fallback {
			c.fallback++
		}
		if inc.ID == "" {
			c.errorf("incident with empty id")
		}
		if seen[inc.ID] {
			c.errorf("duplicate id %q", inc.ID)
		}
		seen[inc.ID] = true
		if inc.SourceID != src.ID {
			c.errorf("incident %s: source_id %q, want %q", inc.ID, inc.SourceID, src.ID)
		}
		if inc.PublishedAt.IsZero() {
			c.errorf("incident %s: missing published_at", inc.ID)
		}
	}
	return c
}

func probeNotify(ctx context.Context, src domain.FeedSource) *check {
	c := &check{name: "notify endpoint", byCat: map[domain.Category]int{}}

	url := sharedcfg.EnvOrDefault("NOTIFY_URL", "http://localhost:3002/api/notify")
	key := os.Getenv("NOTIFY_API_KEY")
	if key == "" {
		c.errorf("NOTIFY_API_KEY is not set")
		return c
	}

	logger := sharedobs.NewLogger("warn", "text")
	client := notify.NewClient(url, key, sharedcfg.EnvOrDefault("FRONTEND_URL", "http://localhost:3000"), 10*time.Second, logger)

	test := domain.RawIncident{
		ID:          "probe-test",
		Category:    domain.CategoryHazard,
		Subcategory: "HAZARD_ON_ROAD",
		Street:      "Probe Street",
		City:        src.City,
		SourceID:    src.ID,
	}

	start := time.Now()
	if err := client.Notify(ctx, test, src); err != nil {
		c.errorf("%v", err)
	}
	c.elapsed = time.Since(start)
	return c
}

func sortedCategories(m map[domain.Category]int) []domain.Category {
	out := make([]domain.Category, 0, len(m))
	for cat := range m {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
