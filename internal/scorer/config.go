// Package scorer computes the argument, linking and combined EAL scores of one document.
package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eal-scorer/internal/config"
	"github.com/sells-group/eal-scorer/internal/model"
)

// Normalizer kinds accepted in ScoringConfig.Normalizer.
const (
	NormalizerIdentity    = "identity"
	NormalizerCoreference = "coreference"
)

// DefaultScoringConfig returns a config.ScoringConfig with the standard EAL parameters.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Beta:           0.25,
		Lambda:         0.5,
		ExcludedRealis: []string{string(model.RealisGeneric)},
		Normalizer:     NormalizerCoreference,
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	if c.Beta < 0 {
		errs = append(errs, fmt.Sprintf("beta must be >= 0, got %g", c.Beta))
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		errs = append(errs, fmt.Sprintf("lambda must be between 0 and 1, got %g", c.Lambda))
	}
	for _, r := range c.ExcludedRealis {
		if _, err := model.ParseRealis(r); err != nil {
			errs = append(errs, fmt.Sprintf("excluded_realis: unknown realis %q", r))
		}
	}
	switch c.Normalizer {
	case NormalizerIdentity, NormalizerCoreference:
	default:
		errs = append(errs, fmt.Sprintf("normalizer must be %s or %s, got %q", NormalizerIdentity, NormalizerCoreference, c.Normalizer))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ExcludedRealis parses the configured realis names. It assumes c passed ValidateConfig.
func ExcludedRealis(c config.ScoringConfig) []model.Realis {
	out := make([]model.Realis, 0, len(c.ExcludedRealis))
	for _, s := range c.ExcludedRealis {
		if r, err := model.ParseRealis(s); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// ConfigHash fingerprints the parameters that affect scores, so runs scored under the
// same settings can be compared.
func ConfigHash(c config.ScoringConfig) string {
	realis := ExcludedRealis(c)
	slices.Sort(realis)
	b, _ := json.Marshal(struct {
		Beta       float64        `json:"beta"`
		Lambda     float64        `json:"lambda"`
		Realis     []model.Realis `json:"excluded_realis"`
		Strict     bool           `json:"strict"`
		Normalizer string         `json:"normalizer"`
		FoldCase   bool           `json:"fold_case"`
	}{c.Beta, c.Lambda, slices.Compact(realis), c.Strict, c.Normalizer, c.FoldCase})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
