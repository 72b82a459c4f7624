// Package profile loads a fakturaextrakt.Profile from a YAML config file.
// It is a thin caller-side concern: the core package itself never imports
// a file format library, so this subpackage is the only place
// gopkg.in/yaml.v3 is used (read file, yaml.Unmarshal into a plain
// struct, then let environment variables override specific fields).
package profile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kvitto/fakturaextrakt"
	"gopkg.in/yaml.v3"
)

// aiPolicyYAML, ediAnchorsYAML, validationYAML, fallbackYAML,
// boundaryYAML, loaderYAML and calibrationYAML mirror the serializable
// subset of fakturaextrakt.Profile's config structs. Profile itself isn't
// unmarshaled directly: it also carries a zerolog.Logger, an InvokeOCR
// func and a calibration.Registry interface, none of which have a
// sensible YAML representation, so LoadYAML overlays these plain fields
// onto fakturaextrakt.DefaultProfile() instead.
type configYAML struct {
	AIPolicy    *aiPolicyYAML    `yaml:"ai_policy"`
	EDIAnchors  *ediAnchorsYAML  `yaml:"edi_anchors"`
	Validation  *validationYAML  `yaml:"validation"`
	Fallback    *fallbackYAML    `yaml:"fallback"`
	Boundary    *boundaryYAML    `yaml:"boundary"`
	Loader      *loaderYAML      `yaml:"loader"`
	Calibration *calibrationYAML `yaml:"calibration"`
	Compare     *compareYAML     `yaml:"compare"`
}

type aiPolicyYAML struct {
	MinTextQuality       *float64 `yaml:"min_text_quality"`
	CriticalFields       []string `yaml:"critical_fields"`
	AllowAIForEDI        *bool    `yaml:"allow_ai_for_edi"`
	ForceReviewOnEDIFail *bool    `yaml:"force_review_on_edi_fail"`
}

type ediAnchorsYAML struct {
	Required      []string `yaml:"required"`
	Extra         []string `yaml:"extra"`
	TablePatterns []string `yaml:"table_patterns"`
	MinSignals    *int     `yaml:"min_signals"`
	MinTableRows  *int     `yaml:"min_table_rows"`
}

type validationYAML struct {
	EpsAbs *float64 `yaml:"eps_abs"`
	EpsRel *float64 `yaml:"eps_rel"`
}

type fallbackYAML struct {
	MaxAttempts      *int     `yaml:"max_attempts"`
	Strategies       []string `yaml:"strategies"`
	TargetConfidence *float64 `yaml:"target_confidence"`
}

type boundaryYAML struct {
	LabelProximity   *float64 `yaml:"label_proximity"`
	PositionInHeader *float64 `yaml:"position_in_header"`
	CharPlausibility *float64 `yaml:"char_plausibility"`
}

type loaderYAML struct {
	MinTokens      *int     `yaml:"min_tokens"`
	MinTextQuality *float64 `yaml:"min_text_quality"`
}

type calibrationYAML struct {
	Enabled *bool `yaml:"enabled"`
}

type compareYAML struct {
	Enabled *bool `yaml:"enabled"`
}

// LoadYAML reads a YAML config file at path and overlays it onto
// fakturaextrakt.DefaultProfile(), returning the merged Profile. A field
// the file doesn't mention keeps its default. Environment variable
// FAKTURAEXTRAKT_AI_MIN_TEXT_QUALITY, when set, overrides
// ai_policy.min_text_quality after the file is applied.
func LoadYAML(path string) (fakturaextrakt.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fakturaextrakt.Profile{}, fmt.Errorf("profile: reading %s: %w", path, err)
	}

	var cfg configYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fakturaextrakt.Profile{}, fmt.Errorf("profile: parsing %s: %w", path, err)
	}

	p := fakturaextrakt.DefaultProfile()
	applyConfig(&p, cfg)

	if v := os.Getenv("FAKTURAEXTRAKT_AI_MIN_TEXT_QUALITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.AIPolicy.MinTextQuality = f
		}
	}

	return p, nil
}

func applyConfig(p *fakturaextrakt.Profile, cfg configYAML) {
	if a := cfg.AIPolicy; a != nil {
		if a.MinTextQuality != nil {
			p.AIPolicy.MinTextQuality = *a.MinTextQuality
		}
		if len(a.CriticalFields) > 0 {
			p.AIPolicy.CriticalFields = a.CriticalFields
		}
		if a.AllowAIForEDI != nil {
			p.AIPolicy.AllowAIForEDI = *a.AllowAIForEDI
		}
		if a.ForceReviewOnEDIFail != nil {
			p.AIPolicy.ForceReviewOnEDIFail = *a.ForceReviewOnEDIFail
		}
	}
	if e := cfg.EDIAnchors; e != nil {
		if len(e.Required) > 0 {
			p.EDIAnchors.Required = e.Required
		}
		if len(e.Extra) > 0 {
			p.EDIAnchors.Extra = e.Extra
		}
		if len(e.TablePatterns) > 0 {
			p.EDIAnchors.TablePatterns = e.TablePatterns
		}
		if e.MinSignals != nil {
			p.EDIAnchors.MinSignals = *e.MinSignals
		}
		if e.MinTableRows != nil {
			p.EDIAnchors.MinTableRows = *e.MinTableRows
		}
	}
	if v := cfg.Validation; v != nil {
		if v.EpsAbs != nil {
			p.Validation.EpsAbs = *v.EpsAbs
		}
		if v.EpsRel != nil {
			p.Validation.EpsRel = *v.EpsRel
		}
	}
	if f := cfg.Fallback; f != nil {
		if f.MaxAttempts != nil {
			p.Fallback.MaxAttempts = *f.MaxAttempts
		}
		if len(f.Strategies) > 0 {
			strategies := make([]fakturaextrakt.FallbackStrategy, len(f.Strategies))
			for i, s := range f.Strategies {
				strategies[i] = fakturaextrakt.FallbackStrategy(s)
			}
			p.Fallback.Strategies = strategies
		}
		if f.TargetConfidence != nil {
			p.Fallback.TargetConfidence = *f.TargetConfidence
		}
	}
	if b := cfg.Boundary; b != nil {
		if b.LabelProximity != nil {
			p.Boundary.LabelProximity = *b.LabelProximity
		}
		if b.PositionInHeader != nil {
			p.Boundary.PositionInHeader = *b.PositionInHeader
		}
		if b.CharPlausibility != nil {
			p.Boundary.CharPlausibility = *b.CharPlausibility
		}
	}
	if l := cfg.Loader; l != nil {
		if l.MinTokens != nil {
			p.Loader.MinTokens = *l.MinTokens
		}
		if l.MinTextQuality != nil {
			p.Loader.MinTextQuality = *l.MinTextQuality
		}
	}
	if c := cfg.Calibration; c != nil && c.Enabled != nil {
		p.Calibration.Enabled = *c.Enabled
	}
	if c := cfg.Compare; c != nil && c.Enabled != nil {
		p.Compare.Enabled = *c.Enabled
	}
}
