package endpoint

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// catalog is the singleton operation registry.
var catalog = &Catalog{}

// catalogFile is the on-disk shape of one namespace.
type catalogFile struct {
	Namespace  string        `yaml:"namespace"`
	Operations []*Descriptor `yaml:"operations"`
}

// Catalog holds descriptors indexed by full name.
type Catalog struct {
	once    sync.Once
	byName  map[string]*Descriptor
	ordered []*Descriptor
	loadErr error
}

func (c *Catalog) load() {
	c.once.Do(func() {
		c.byName = make(map[string]*Descriptor)

		entries, err := catalogFS.ReadDir("catalog")
		if err != nil {
			c.loadErr = fmt.Errorf("reading catalog dir: %w", err)
			return
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}

			data, err := catalogFS.ReadFile("catalog/" + entry.Name())
			if err != nil {
				c.loadErr = fmt.Errorf("reading %s: %w", entry.Name(), err)
				return
			}

			var file catalogFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				c.loadErr = fmt.Errorf("parsing %s: %w", entry.Name(), err)
				return
			}

			for _, d := range file.Operations {
				d.Namespace = file.Namespace
				d.Method = strings.ToUpper(d.Method)
				for i := range d.Params {
					if d.Params[i].In == "" {
						d.Params[i].In = InQuery
					}
				}
				c.byName[d.FullName()] = d
				c.ordered = append(c.ordered, d)
			}
		}

		sort.SliceStable(c.ordered, func(i, j int) bool {
			return c.ordered[i].FullName() < c.ordered[j].FullName()
		})
	})
}

// LoadError returns any error encountered while loading the catalog.
func LoadError() error {
	catalog.load()
	return catalog.loadErr
}

// Lookup returns the descriptor for "namespace.name".
func Lookup(name string) (*Descriptor, error) {
	catalog.load()
	if catalog.loadErr != nil {
		return nil, catalog.loadErr
	}
	if d, ok := catalog.byName[name]; ok {
		return d, nil
	}
	return nil, output.ErrUsageHint(
		fmt.Sprintf("Unknown operation: %s", name),
		"Run: purecloud endpoints",
	)
}

// List returns descriptors sorted by full name. A non-empty namespace filters.
func List(namespace string) []*Descriptor {
	catalog.load()
	if namespace == "" {
		return append([]*Descriptor(nil), catalog.ordered...)
	}
	var out []*Descriptor
	for _, d := range catalog.ordered {
		if d.Namespace == namespace {
			out = append(out, d)
		}
	}
	return out
}

// Namespaces returns the sorted namespace names.
func Namespaces() []string {
	catalog.load()
	seen := make(map[string]bool)
	var out []string
	for _, d := range catalog.ordered {
		if !seen[d.Namespace] {
			seen[d.Namespace] = true
			out = append(out, d.Namespace)
		}
	}
	return out
}
