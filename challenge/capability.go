package challenge

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed capabilities.yaml
var defaultCatalogYAML []byte

// Capability is an allow-listed drone profile. A flight plan declares one
// by name; the replay engine uses it to bound commanded thrust and to
// account energy. Participant-declared numbers are never used directly.
type Capability struct {
	Name        string  `yaml:"name"`
	MassKg      float64 `yaml:"mass_kg"`
	MaxThrustN  float64 `yaml:"max_thrust_n"`
	MaxTiltRad  float64 `yaml:"max_tilt_rad"`
	BatteryJ    float64 `yaml:"battery_j"`
	HoverPowerW float64 `yaml:"hover_power_w"`
}

func (c Capability) validate() error {
	if c.Name == "" {
		return fmt.Errorf("capability without a name")
	}
	if c.MassKg <= 0 || c.MaxThrustN <= 0 || c.BatteryJ <= 0 || c.HoverPowerW < 0 {
		return fmt.Errorf("capability %q: non-positive physical parameter", c.Name)
	}
	if c.MaxThrustN <= c.MassKg*9.81 {
		return fmt.Errorf("capability %q: max thrust cannot lift the drone", c.Name)
	}
	return nil
}

// Catalog is the allow-list of capability profiles.
type Catalog struct {
	profiles map[string]Capability
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded capability catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		return nil, fmt.Errorf("reading capability catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Profiles []Capability `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing capability catalog: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("capability catalog has no profiles")
	}

	profiles := make(map[string]Capability, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, ok := profiles[p.Name]; ok {
			return nil, fmt.Errorf("duplicate capability %q", p.Name)
		}
		profiles[p.Name] = p
	}
	return &Catalog{profiles: profiles}, nil
}

// Lookup returns the profile with the given name, if allow-listed.
func (c *Catalog) Lookup(name string) (Capability, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

func (c *Catalog) Len() int { return len(c.profiles) }
