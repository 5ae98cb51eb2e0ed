// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking turns raw vector search hits into a deterministic,
// explainable per-author ranking: hits are flattened to one record per
// author, scored by a configurable formula, aggregated top-N per author for
// each resource type, and merged across resource types.
package ranking

import (
	"fmt"

	"github.com/pdiddy/expert-engine/internal/formula"
)

// ConfigError marks a misconfiguration that is fatal for the whole ranking
// request: an unknown resource type, a missing scoring config, or a formula
// referencing unknown fields. It is never silently skipped.
type ConfigError struct {
	Resource string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ranking config for resource %q: %v", e.Resource, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ResourceScoringConfig configures scoring for one resource type.
type ResourceScoringConfig struct {
	// Resource is the resource type tag (e.g. "work").
	Resource string `json:"resource" yaml:"resource"`

	// Formula scores each flattened record. It may reference any numeric
	// field of the records, the functions log10 and sqrt, and the constant
	// current_year.
	Formula string `json:"formula" yaml:"formula"`

	// MinDistance is the similarity threshold. Records must beat it strictly.
	MinDistance float64 `json:"min_distance" yaml:"min_distance"`

	// HigherIsBetter selects the comparator direction: true for inner-product
	// metrics (distance > MinDistance passes), false for L2 (distance <
	// MinDistance passes).
	HigherIsBetter bool `json:"higher_is_better" yaml:"higher_is_better"`

	// NPerAuthor caps how many records count toward one author's score for
	// this resource type.
	NPerAuthor int `json:"n_per_author" yaml:"n_per_author"`

	expr *formula.Expr
}

// FormulaIdentifiers returns the field names the compiled formula references,
// sorted. Callers use it to validate formulas against a schema at startup.
func (c *ResourceScoringConfig) FormulaIdentifiers() []string {
	return c.expr.Identifiers()
}

// passes reports whether a distance strictly beats the threshold.
func (c *ResourceScoringConfig) passes(distance float64) bool {
	if c.HigherIsBetter {
		return distance > c.MinDistance
	}
	return distance < c.MinDistance
}

// RerankConfig holds one scoring config per resource type.
type RerankConfig struct {
	configs map[string]*ResourceScoringConfig
	order   []string
}

// NewRerankConfig validates and compiles the scoring configs. Duplicate
// resource tags, empty tags, non-positive NPerAuthor, and malformed formulas
// fail here so that unknown resource types fail at configuration time rather
// than at request time.
func NewRerankConfig(configs ...ResourceScoringConfig) (RerankConfig, error) {
	rc := RerankConfig{configs: make(map[string]*ResourceScoringConfig, len(configs))}
	for i := range configs {
		c := configs[i]
		if c.Resource == "" {
			return RerankConfig{}, &ConfigError{Resource: c.Resource, Err: fmt.Errorf("empty resource tag")}
		}
		if _, dup := rc.configs[c.Resource]; dup {
			return RerankConfig{}, &ConfigError{Resource: c.Resource, Err: fmt.Errorf("duplicate scoring config")}
		}
		if c.NPerAuthor <= 0 {
			return RerankConfig{}, &ConfigError{Resource: c.Resource, Err: fmt.Errorf("n_per_author must be positive, got %d", c.NPerAuthor)}
		}
		expr, err := formula.Parse(c.Formula)
		if err != nil {
			return RerankConfig{}, &ConfigError{Resource: c.Resource, Err: err}
		}
		c.expr = expr
		rc.configs[c.Resource] = &c
		rc.order = append(rc.order, c.Resource)
	}
	if len(rc.order) == 0 {
		return RerankConfig{}, &ConfigError{Err: fmt.Errorf("no scoring configs")}
	}
	return rc, nil
}

// Resources returns the registered resource type tags in registration order.
func (rc RerankConfig) Resources() []string {
	out := make([]string, len(rc.order))
	copy(out, rc.order)
	return out
}

// WithMinDistance returns a copy of the config with every resource's
// threshold replaced. Compiled formulas are shared with the original.
func (rc RerankConfig) WithMinDistance(min float64) RerankConfig {
	out := RerankConfig{configs: make(map[string]*ResourceScoringConfig, len(rc.configs)), order: rc.Resources()}
	for tag, c := range rc.configs {
		cc := *c
		cc.MinDistance = min
		out.configs[tag] = &cc
	}
	return out
}

// ScoringConfig returns the config for a resource type. Unknown resource
// types are a ConfigError.
func (rc RerankConfig) ScoringConfig(resource string) (*ResourceScoringConfig, error) {
	c, ok := rc.configs[resource]
	if !ok {
		return nil, &ConfigError{Resource: resource, Err: fmt.Errorf("no scoring config registered")}
	}
	return c, nil
}

// DefaultWorkFormula is the shipped scoring formula for the "work" resource
// type: similarity cubed, citation weight, and a mild recency term.
const DefaultWorkFormula = "distance ** 3 + log10(cited_by_count + 3) + 1 / log10(publication_year + 3)"

// DefaultRerankConfig returns the shipped ranking configuration: works only,
// inner-product metric, threshold 0.8, ten records per author.
func DefaultRerankConfig() RerankConfig {
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        DefaultWorkFormula,
		MinDistance:    0.8,
		HigherIsBetter: true,
		NPerAuthor:     10,
	})
	if err != nil {
		panic(err) // the shipped default must compile
	}
	return rc
}
