package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/casualjim/modelbridge/provider"
	"gopkg.in/yaml.v3"
)

// MatchField selects what part of a descriptor a rule pattern is matched
// against.
type MatchField string

const (
	// MatchModel matches when the pattern occurs anywhere in the model id.
	MatchModel MatchField = "model"
	// MatchModelPrefix matches when the model id starts with the pattern.
	MatchModelPrefix MatchField = "model_prefix"
	// MatchProvider matches when the provider type equals the pattern.
	MatchProvider MatchField = "provider"
)

// Properties are the metadata a rule assigns. Nil members assign nothing.
type Properties struct {
	Group        string                 `yaml:"group,omitempty"`
	Capabilities *provider.Capabilities `yaml:"capabilities,omitempty"`
	TokenLimits  *provider.TokenLimits  `yaml:"token_limits,omitempty"`
	Pricing      *provider.Pricing      `yaml:"pricing,omitempty"`
	_            struct{}
}

// Rule assigns metadata to every descriptor its pattern matches. Rules are
// evaluated highest priority first and the first positive match wins per
// property; later rules never overwrite an already-assigned property.
type Rule struct {
	Pattern    string     `yaml:"pattern"`
	Field      MatchField `yaml:"field"`
	Priority   int        `yaml:"priority"`
	Properties Properties `yaml:"properties"`
	_          struct{}
}

func (r Rule) matches(m provider.Model) bool {
	switch r.Field {
	case MatchModel, "":
		return strings.Contains(strings.ToLower(m.ID), strings.ToLower(r.Pattern))
	case MatchModelPrefix:
		return strings.HasPrefix(strings.ToLower(m.ID), strings.ToLower(r.Pattern))
	case MatchProvider:
		return string(m.Provider) == r.Pattern
	}
	return false
}

// ParseRules decodes a YAML rule list.
func ParseRules(raw []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse metadata rules: %w", err)
	}
	return rules, nil
}

// Apply enriches the descriptors in place. Property assignment is
// first-match-wins across the priority-sorted rule list; properties already
// present on a descriptor from the listing itself are kept.
func Apply(rules []Rule, descriptors []provider.Model) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	for i := range descriptors {
		m := &descriptors[i]
		for _, rule := range sorted {
			if !rule.matches(*m) {
				continue
			}
			props := rule.Properties
			if m.Group == "" && props.Group != "" {
				m.Group = props.Group
			}
			if m.Capabilities == nil && props.Capabilities != nil {
				caps := *props.Capabilities
				m.Capabilities = &caps
			}
			if m.TokenLimits == nil && props.TokenLimits != nil {
				limits := *props.TokenLimits
				m.TokenLimits = &limits
			}
			if m.Pricing == nil && props.Pricing != nil {
				pricing := *props.Pricing
				m.Pricing = &pricing
			}
		}
	}
}
