package selection

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/valuescope/internal/contracts"
)

//go:embed presets.yaml
var defaultPresets []byte

// catalogFile is the YAML layout of a preset catalog
type catalogFile struct {
	Version int                `yaml:"version"`
	Presets []contracts.Preset `yaml:"presets"`
}

// Catalog is the read-only set of presets loaded at process start
// ⭐ SSOT: 프리셋 카탈로그는 여기서만 로드
type Catalog struct {
	version int
	presets []contracts.Preset
	byID    map[string]int
}

// LoadCatalog reads the catalog from path, or the built-in catalog when path is empty.
// Any invalid preset fails the whole load; callers treat that as fatal at startup.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultPresets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read preset catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode preset catalog: %w", err)
	}

	c := &Catalog{
		version: file.Version,
		presets: make([]contracts.Preset, 0, len(file.Presets)),
		byID:    make(map[string]int, len(file.Presets)),
	}

	for _, p := range file.Presets {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: preset without id", contracts.ErrInvalidQuery)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate preset id %q", contracts.ErrInvalidQuery, p.ID)
		}
		if err := p.Query.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		p.Query = p.Query.Clone()
		c.byID[p.ID] = len(c.presets)
		c.presets = append(c.presets, p)
	}

	return c, nil
}

// Version returns the catalog version
func (c *Catalog) Version() int {
	return c.version
}

// List returns copies of all presets in catalog order
func (c *Catalog) List() []contracts.Preset {
	out := make([]contracts.Preset, len(c.presets))
	for i, p := range c.presets {
		p.Query = p.Query.Clone()
		out[i] = p
	}
	return out
}

// Get returns a copy of one preset
func (c *Catalog) Get(id string) (contracts.Preset, error) {
	i, ok := c.byID[id]
	if !ok {
		return contracts.Preset{}, fmt.Errorf("%w: %q", contracts.ErrPresetNotFound, id)
	}
	p := c.presets[i]
	p.Query = p.Query.Clone()
	return p, nil
}

// Apply returns the preset's query as a fresh value that replaces the
// caller's current query as a whole; nothing is merged.
func (c *Catalog) Apply(id string) (contracts.ScreenerQuery, error) {
	p, err := c.Get(id)
	if err != nil {
		return contracts.ScreenerQuery{}, err
	}
	return p.Query, nil
}
