package main

import (
	"errors"
	"fmt"
	"os"

	hq "github.com/alnah/go-hq"
	"github.com/alnah/go-hq/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigRead     = errors.New("failed to read config file")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrEmptyConfig    = errors.New("config declares no passes")
	ErrPassShape      = errors.New("pass must set either filter or selectors")
	ErrMissingMatch   = errors.New("selector is missing match")
	ErrUnknownAction  = errors.New("unknown action type")
	ErrActionArgument = errors.New("action is missing a required field")
)

// Action type names accepted in config files.
const (
	actionFilter           = "filter"
	actionRewriteAttribute = "rewriteAttribute"
	actionSetInnerContent  = "setInnerContent"
)

// Config is a declarative pipeline description. Passes run in file
// order.
type Config struct {
	Passes []PassConfig `yaml:"passes"`
}

// PassConfig declares one pass: either the filter shorthand (a single
// filtering selector) or a full selector list, not both.
type PassConfig struct {
	Filter    string           `yaml:"filter,omitempty"`
	Selectors []SelectorConfig `yaml:"selectors,omitempty"`
}

// SelectorConfig binds a CSS selector to an ordered action list.
type SelectorConfig struct {
	Match   string         `yaml:"match"`
	Actions []ActionConfig `yaml:"actions"`
}

// ActionConfig declares one action. Type selects the variant; the
// other fields apply per type.
type ActionConfig struct {
	Type        string `yaml:"type"`
	Attr        string `yaml:"attr,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
	Template    string `yaml:"template,omitempty"`
}

// LoadConfig reads and validates a pipeline description file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the user's own --config flag
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigRead, err)
	}
	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants the YAML schema cannot
// express. Selector and pattern syntax are checked later by Compile.
func (c *Config) Validate() error {
	if len(c.Passes) == 0 {
		return ErrEmptyConfig
	}
	for i, pass := range c.Passes {
		if (pass.Filter == "") == (len(pass.Selectors) == 0) {
			return fmt.Errorf("pass %d: %w", i, ErrPassShape)
		}
		for _, sel := range pass.Selectors {
			if sel.Match == "" {
				return fmt.Errorf("pass %d: %w", i, ErrMissingMatch)
			}
			for _, act := range sel.Actions {
				if err := act.validate(); err != nil {
					return fmt.Errorf("pass %d: selector %q: %w", i, sel.Match, err)
				}
			}
		}
	}
	return nil
}

func (a ActionConfig) validate() error {
	switch a.Type {
	case actionFilter:
		return nil
	case actionRewriteAttribute:
		if a.Attr == "" || a.Pattern == "" {
			return fmt.Errorf("%w: rewriteAttribute needs attr and pattern", ErrActionArgument)
		}
		return nil
	case actionSetInnerContent:
		if a.Template == "" {
			return fmt.Errorf("%w: setInnerContent needs template", ErrActionArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
}

// buildPipeline assembles the pipeline: one filter pass per -f flag in
// order, then the config passes in file order.
func buildPipeline(filters []string, cfg *Config) *hq.Pipeline {
	pipeline := hq.New()
	for _, filter := range filters {
		filter := filter
		pipeline.AddPass(func(p *hq.Pass) {
			p.Filter(filter)
		})
	}
	if cfg == nil {
		return pipeline
	}
	for _, passCfg := range cfg.Passes {
		passCfg := passCfg
		pipeline.AddPass(func(p *hq.Pass) {
			if passCfg.Filter != "" {
				p.Filter(passCfg.Filter)
				return
			}
			for _, selCfg := range passCfg.Selectors {
				selCfg := selCfg
				p.On(selCfg.Match, func(s *hq.Selector) {
					for _, act := range selCfg.Actions {
						switch act.Type {
						case actionFilter:
							s.Filter()
						case actionRewriteAttribute:
							s.RewriteAttribute(act.Attr, act.Pattern, act.Replacement)
						case actionSetInnerContent:
							s.SetInnerContent(act.Template)
						}
					}
				})
			}
		})
	}
	return pipeline
}
