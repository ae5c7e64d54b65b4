package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/2beens/fitdash/internal/filters"
	"github.com/2beens/fitdash/internal/query"
	"github.com/2beens/fitdash/internal/training"
)

const (
	defaultWindow = 13
	maxWindow     = 104
)

// Config is the dashboard layout: filters, weekly metrics and pages.
type Config struct {
	Filters []filters.Spec    `json:"filters"`
	Metrics []training.Metric `json:"metrics"`
	Weekly  WeeklyConfig      `json:"weekly"`
	Pages   []PageConfig      `json:"pages"`

	filtersByName map[string]filters.Spec
	metricsByName map[string]training.Metric
	pagesByName   map[string]*Page
	weeklyQuery   *query.Template
}

type WeeklyConfig struct {
	// SQL template reading the weekly metrics table; {{.Where}} gets the metric_name clause.
	SQL           string `json:"sql"`
	DefaultWindow int    `json:"default_window"`
}

type PageConfig struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Filters     []string `json:"filters"`
	SQL         string   `json:"sql"`
	DateColumn  string   `json:"date_column,omitempty"`
	PercentMode bool     `json:"percent_mode,omitempty"`
}

// Page is a configured page with its filter specs and parsed template.
type Page struct {
	Name        string
	Title       string
	PercentMode bool
	Filters     []filters.Spec
	Template    *query.Template
}

func LoadConfig(path string) (*Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboard config: %w", err)
	}
	return ParseConfig(configBytes)
}

func ParseConfig(configBytes []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(configBytes, cfg); err != nil {
		return nil, fmt.Errorf("decode dashboard config: %w", err)
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) init() error {
	c.filtersByName = make(map[string]filters.Spec, len(c.Filters))
	for _, f := range c.Filters {
		if _, ok := c.filtersByName[f.Name]; ok {
			return fmt.Errorf("duplicate filter: %s", f.Name)
		}
		c.filtersByName[f.Name] = f
	}

	c.metricsByName = make(map[string]training.Metric, len(c.Metrics))
	for i, m := range c.Metrics {
		if m.Name == "" {
			return errors.New("metric name not set")
		}
		if _, ok := c.metricsByName[m.Name]; ok {
			return fmt.Errorf("duplicate metric: %s", m.Name)
		}
		format, err := training.ParseValueFormat(string(m.Format))
		if err != nil {
			return fmt.Errorf("metric [%s]: %w", m.Name, err)
		}
		c.Metrics[i].Format = format
		if c.Metrics[i].Label == "" {
			c.Metrics[i].Label = m.Name
		}
		c.metricsByName[m.Name] = c.Metrics[i]
	}

	if len(c.Metrics) > 0 {
		if c.Weekly.SQL == "" {
			return errors.New("weekly sql not set")
		}
		tmpl, err := query.NewTemplate("weekly", c.Weekly.SQL, "")
		if err != nil {
			return err
		}
		c.weeklyQuery = tmpl
	}
	if c.Weekly.DefaultWindow <= 0 {
		c.Weekly.DefaultWindow = defaultWindow
	}

	c.pagesByName = make(map[string]*Page, len(c.Pages))
	for _, p := range c.Pages {
		if p.Name == "" {
			return errors.New("page name not set")
		}
		if _, ok := c.pagesByName[p.Name]; ok {
			return fmt.Errorf("duplicate page: %s", p.Name)
		}

		page := &Page{
			Name:        p.Name,
			Title:       p.Title,
			PercentMode: p.PercentMode,
		}
		if page.Title == "" {
			page.Title = p.Name
		}
		for _, name := range p.Filters {
			spec, ok := c.filtersByName[name]
			if !ok {
				return fmt.Errorf("page [%s]: unknown filter: %s", p.Name, name)
			}
			page.Filters = append(page.Filters, spec)
		}

		tmpl, err := query.NewTemplate(p.Name, p.SQL, p.DateColumn)
		if err != nil {
			return fmt.Errorf("page [%s]: %w", p.Name, err)
		}
		page.Template = tmpl
		c.pagesByName[p.Name] = page
	}

	return nil
}

func (c *Config) Page(name string) (*Page, bool) {
	p, ok := c.pagesByName[name]
	return p, ok
}

func (c *Config) Metric(name string) (training.Metric, bool) {
	m, ok := c.metricsByName[name]
	return m, ok
}
