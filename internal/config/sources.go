package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/traffic-incident-monitor/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultSources are used when FEED_SOURCES_FILE is unset.
var DefaultSources = []domain.FeedSource{
	{
		ID:          "west",
		DisplayName: "West Area",
		FetchURL:    "https://www.waze.com/row-partnerhub-api/partners/18727209890/waze-feeds/b9eb1444-6cef-4cbd-b681-2937ad70dc9c?format=1",
		Kind:        domain.SourceKindPartner,
	},
	{
		ID:          "thomson",
		DisplayName: "Thomson Road",
		FetchURL:    "https://www.waze.com/row-partnerhub-api/partners/18727209890/waze-feeds/e0c6ef0a-aae0-4e8f-986b-65fb02a5e5a9?format=1",
		Kind:        domain.SourceKindPartner,
	},
}

// LoadSources returns the configured feed sources: the YAML file named by
// FEED_SOURCES_FILE or the defaults, plus a government source when
// GOV_FEED_URL is set.
func LoadSources() ([]domain.FeedSource, error) {
	var sources []domain.FeedSource
	if path := os.Getenv("FEED_SOURCES_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open FEED_SOURCES_FILE: %w", err)
		}
		defer f.Close()
		sources, err = ParseSources(f)
		if err != nil {
			return nil, fmt.Errorf("FEED_SOURCES_FILE %s: %w", path, err)
		}
	} else {
		sources = append(sources, DefaultSources...)
	}

	if url := os.Getenv("GOV_FEED_URL"); url != "" {
		sources = append(sources, domain.FeedSource{
			ID:          sharedcfg.EnvOrDefault("GOV_FEED_ID", "lta"),
			DisplayName: sharedcfg.EnvOrDefault("GOV_FEED_NAME", "Government Traffic Incidents"),
			FetchURL:    url,
			Kind:        domain.SourceKindGov,
			Street:      os.Getenv("GOV_FEED_STREET"),
			City:        os.Getenv("GOV_FEED_CITY"),
			Country:     os.Getenv("GOV_FEED_COUNTRY"),
		})
	}

	if err := validateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// ParseSources decodes and validates a non-empty YAML list of feed sources.
func ParseSources(r io.Reader) ([]domain.FeedSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("no feed sources defined")
	}

	var sources []domain.FeedSource
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, errors.New("no feed sources defined")
	}
	for i := range sources {
		if sources[i].Kind == "" {
			sources[i].Kind = domain.SourceKindPartner
		}
		if sources[i].DisplayName == "" {
			sources[i].DisplayName = sources[i].ID
		}
	}
	if err := validateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func validateSources(sources []domain.FeedSource) error {
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if s.ID == "" {
			return fmt.Errorf("feed source %d: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("feed source %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.FetchURL == "" {
			return fmt.Errorf("feed source %q: url is required", s.ID)
		}
		if s.Kind != domain.SourceKindPartner && s.Kind != domain.SourceKindGov {
			return fmt.Errorf("feed source %q: unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}
