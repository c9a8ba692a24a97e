package daemon

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/vitaliisemenov/configd/internal/paramset"
)

// SeedSpec is one ParameterSet's initial state, as loaded from a YAML
// seed file by SeedPlugin.
type SeedSpec struct {
	Name         string         `mapstructure:"name"`
	Calibratable bool           `mapstructure:"calibratable"`
	Qualifier    uint8          `mapstructure:"qualifier"`
	Parameters   map[string]any `mapstructure:"parameters"`
}

// SeedPlugin is the one concrete Plugin shipped with this module: it
// reads a YAML file of ParameterSets via viper and inserts them into
// the collection once, at Initialize time. It produces no events and
// needs no background thread, so Run returns immediately.
type SeedPlugin struct {
	path string
	v    *viper.Viper
}

// NewSeedPlugin builds a SeedPlugin that will read its seed data from
// path (a YAML file) when Initialize runs.
func NewSeedPlugin(path string) *SeedPlugin {
	return &SeedPlugin{path: path, v: viper.New()}
}

func (p *SeedPlugin) Name() string { return "seed" }

func (p *SeedPlugin) Initialize(_ context.Context, collection *paramset.Collection) error {
	p.v.SetConfigFile(p.path)
	p.v.SetConfigType("yaml")
	if err := p.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading seed file %q: %w", p.path, err)
	}

	var specs []SeedSpec
	if err := p.v.UnmarshalKey("parameter_sets", &specs); err != nil {
		return fmt.Errorf("parsing seed file %q: %w", p.path, err)
	}

	for _, spec := range specs {
		for name, value := range spec.Parameters {
			if err := collection.Insert(spec.Name, name, paramset.NewValue(value)); err != nil {
				return fmt.Errorf("seeding %s.%s: %w", spec.Name, name, err)
			}
		}
		collection.SetCalibratable(spec.Name, spec.Calibratable)
		if err := collection.SetParameterSetQualifier(spec.Name, paramset.Qualifier(spec.Qualifier)); err != nil {
			return fmt.Errorf("setting qualifier for %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (p *SeedPlugin) Run(_ context.Context, _ *paramset.Collection, _ LastUpdatedSender, _ QualifierSender) error {
	return nil
}

func (p *SeedPlugin) Deinitialize(_ context.Context) error {
	return nil
}

// StaticPluginCollector is a PluginCollector that returns a fixed,
// pre-built list of plugins — the daemon's default collector, since
// this module ships no external plugin-discovery mechanism.
type StaticPluginCollector struct {
	plugins []Plugin
}

// NewStaticPluginCollector wraps plugins for use as a PluginCollector.
func NewStaticPluginCollector(plugins ...Plugin) *StaticPluginCollector {
	return &StaticPluginCollector{plugins: plugins}
}

func (c *StaticPluginCollector) CollectPlugins(_ context.Context) ([]Plugin, error) {
	return c.plugins, nil
}
