// Package messages holds the localized operator-facing strings. A catalog
// is chosen once at startup with Select and only read afterwards.
package messages

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// DefaultLanguage is used when no catalog matches the requested language.
const DefaultLanguage = "en"

// Catalog maps message keys to format strings for one language.
type Catalog struct {
	Language string
	entries  map[string]string
	fallback *Catalog
}

// Load parses the embedded catalog for lang. Keys missing from a
// non-default catalog fall back to English.
func Load(lang string) (*Catalog, error) {
	c, err := parse(lang)
	if err != nil {
		return nil, err
	}
	if lang != DefaultLanguage {
		fb, err := parse(DefaultLanguage)
		if err != nil {
			return nil, err
		}
		c.fallback = fb
	}
	return c, nil
}

func parse(lang string) (*Catalog, error) {
	data, err := catalogFS.ReadFile("catalog/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no message catalog for language %q", lang)
	}
	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s catalog: %w", lang, err)
	}
	return &Catalog{Language: lang, entries: entries}, nil
}

// T formats the message for key. Unknown keys render as the key itself.
func (c *Catalog) T(key string, args ...any) string {
	format, ok := c.lookup(key)
	if !ok {
		format = key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Has reports whether key is defined in this catalog or its fallback.
func (c *Catalog) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Keys lists the keys defined directly in this catalog.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Catalog) lookup(key string) (string, bool) {
	if v, ok := c.entries[key]; ok {
		return v, true
	}
	if c.fallback != nil {
		return c.fallback.lookup(key)
	}
	return "", false
}

// Languages lists the embedded catalogs.
func Languages() []string {
	entries, err := catalogFS.ReadDir("catalog")
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(langs)
	return langs
}

// Detect picks a catalog language from the usual locale variables.
func Detect(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := strings.ToLower(getenv(key))
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "zh") {
			return "zh"
		}
		return DefaultLanguage
	}
	return DefaultLanguage
}

var (
	mu      sync.RWMutex
	current *Catalog
)

// Select loads lang and makes it the catalog used by T.
func Select(lang string) error {
	c, err := Load(lang)
	if err != nil {
		return err
	}
	mu.Lock()
	current = c
	mu.Unlock()
	return nil
}

// Current returns the selected catalog, loading English on first use.
func Current() *Catalog {
	mu.RLock()
	c := current
	mu.RUnlock()
	if c != nil {
		return c
	}
	if err := Select(DefaultLanguage); err != nil {
		panic(err)
	}
	return Current()
}

// T formats key with the selected catalog.
func T(key string, args ...any) string {
	return Current().T(key, args...)
}
