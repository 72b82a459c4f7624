package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kvitto/fakturaextrakt"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	return path
}

func TestLoadYAMLOverlaysOntoDefaults(t *testing.T) {
	path := writeConfig(t, `
ai_policy:
  min_text_quality: 0.65
  allow_ai_for_edi: true
validation:
  eps_abs: 0.02
loader:
  min_tokens: 10
`)

	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	if p.AIPolicy.MinTextQuality != 0.65 {
		t.Errorf("AIPolicy.MinTextQuality = %v, want 0.65", p.AIPolicy.MinTextQuality)
	}
	if !p.AIPolicy.AllowAIForEDI {
		t.Errorf("AIPolicy.AllowAIForEDI = false, want true")
	}
	if p.Validation.EpsAbs != 0.02 {
		t.Errorf("Validation.EpsAbs = %v, want 0.02", p.Validation.EpsAbs)
	}
	if p.Loader.MinTokens != 10 {
		t.Errorf("Loader.MinTokens = %v, want 10", p.Loader.MinTokens)
	}

	// Fields the file never mentions keep DefaultProfile's values.
	def := fakturaextrakt.DefaultProfile()
	if p.Validation.EpsRel != def.Validation.EpsRel {
		t.Errorf("Validation.EpsRel = %v, want default %v", p.Validation.EpsRel, def.Validation.EpsRel)
	}
	if p.EDIAnchors.MinSignals != def.EDIAnchors.MinSignals {
		t.Errorf("EDIAnchors.MinSignals = %v, want default %v", p.EDIAnchors.MinSignals, def.EDIAnchors.MinSignals)
	}
}

func TestLoadYAMLEmptyFileReturnsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	def := fakturaextrakt.DefaultProfile()
	if p.AIPolicy.MinTextQuality != def.AIPolicy.MinTextQuality {
		t.Errorf("AIPolicy.MinTextQuality = %v, want default %v", p.AIPolicy.MinTextQuality, def.AIPolicy.MinTextQuality)
	}
}

func TestLoadYAMLFallbackStrategiesOverride(t *testing.T) {
	path := writeConfig(t, `
fallback:
  max_attempts: 1
  strategies:
    - loose_number_format
`)

	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(p.Fallback.Strategies) != 1 || p.Fallback.Strategies[0] != fakturaextrakt.StrategyLooseNumberFormat {
		t.Errorf("Fallback.Strategies = %v, want [loose_number_format]", p.Fallback.Strategies)
	}
	if p.Fallback.MaxAttempts != 1 {
		t.Errorf("Fallback.MaxAttempts = %v, want 1", p.Fallback.MaxAttempts)
	}
	def := fakturaextrakt.DefaultProfile()
	if p.Fallback.TargetConfidence != def.Fallback.TargetConfidence {
		t.Errorf("Fallback.TargetConfidence = %v, want default %v", p.Fallback.TargetConfidence, def.Fallback.TargetConfidence)
	}
}

func TestLoadYAMLFallbackTargetConfidenceOverride(t *testing.T) {
	path := writeConfig(t, `
fallback:
  target_confidence: 0.75
`)

	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if p.Fallback.TargetConfidence != 0.75 {
		t.Errorf("Fallback.TargetConfidence = %v, want 0.75", p.Fallback.TargetConfidence)
	}
}

func TestLoadYAMLMissingFileReturnsError(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing config file")
	}
}

func TestLoadYAMLMalformedYAMLReturnsError(t *testing.T) {
	path := writeConfig(t, "ai_policy: [this is not a mapping")
	if _, err := LoadYAML(path); err == nil {
		t.Errorf("expected an error for malformed YAML")
	}
}
