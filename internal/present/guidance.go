package present

import (
	_ "embed"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/ravgrowth/ravbot/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed guidance.yaml
var defaultCatalogYAML []byte

// Guidance points the user at a place to cancel a subscription.
type Guidance struct {
	URL   string `json:"url"`
	Known bool   `json:"known"` // false when URL is a web search fallback
}

// CatalogEntry is one merchant with a known cancellation page.
type CatalogEntry struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
	URL   string   `yaml:"url"`
}

// Catalog maps merchant names to cancellation pages.
type Catalog struct {
	SearchURL string         `yaml:"search_url"`
	Merchants []CatalogEntry `yaml:"merchants"`
}

// LoadCatalog parses a YAML catalog.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return c, fmt.Errorf("parsing guidance catalog: %w", err)
	}
	if c.SearchURL == "" {
		c.SearchURL = "https://www.google.com/search?q=%s"
	}
	for i, m := range c.Merchants {
		if m.URL == "" || len(m.Match) == 0 {
			return c, fmt.Errorf("guidance catalog entry %d (%s): url and match are required", i, m.Name)
		}
		for j, p := range m.Match {
			c.Merchants[i].Match[j] = model.NormalizeName(p)
		}
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog Catalog
)

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	defaultOnce.Do(func() {
		c, err := LoadCatalog(strings.NewReader(string(defaultCatalogYAML)))
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup returns the first entry whose pattern occurs as whole words in the
// normalized merchant name, or a web search for "<merchant> cancel subscription".
func (c Catalog) Lookup(merchant string) Guidance {
	name := " " + model.NormalizeName(merchant) + " "
	for _, m := range c.Merchants {
		for _, p := range m.Match {
			if p != "" && strings.Contains(name, " "+p+" ") {
				return Guidance{URL: m.URL, Known: true}
			}
		}
	}
	q := url.QueryEscape(strings.TrimSpace(merchant) + " cancel subscription")
	return Guidance{URL: fmt.Sprintf(c.SearchURL, q)}
}

// GuidanceFor looks merchant up in the built-in catalog.
func GuidanceFor(merchant string) Guidance {
	return DefaultCatalog().Lookup(merchant)
}
