package enrich

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/placedir/refresh-cli/internal/model"
)

// Config tunes reconciliation: per-source base confidence and the floor
// below which a candidate is ignored entirely.
type Config struct {
	// MinConfidence drops candidates that no strategy trusts.
	MinConfidence float64 `yaml:"min_confidence"`
	// SourceConfidence maps fragment kinds to base confidence. Higher
	// wins per field during reconciliation.
	SourceConfidence map[model.FragmentKind]float64 `yaml:"source_confidence"`
	// RatingAgreementDelta is the max spread (in stars) across sources
	// still counted as agreement.
	RatingAgreementDelta float64 `yaml:"rating_agreement_delta"`
}

// DefaultConfig returns the built-in reconciliation policy: structured
// data over feeds over AI summaries over raw scrapes.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.3,
		SourceConfidence: map[model.FragmentKind]float64{
			model.FragmentSchemaOrg:  0.9,
			model.FragmentRatingFeed: 0.85,
			model.FragmentAIReader:   0.7,
			model.FragmentWebsite:    0.5,
		},
		RatingAgreementDelta: 0.3,
	}
}

// LoadConfig reads reconciliation overrides from a YAML file. Fields the
// file omits keep the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "enrich: read config %s", path)
	}

	var wrapper struct {
		Reconcile Config `yaml:"reconcile"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return cfg, eris.Wrap(err, "enrich: parse config")
	}

	over := wrapper.Reconcile
	if over.MinConfidence > 0 {
		cfg.MinConfidence = over.MinConfidence
	}
	if over.RatingAgreementDelta > 0 {
		cfg.RatingAgreementDelta = over.RatingAgreementDelta
	}
	for kind, conf := range over.SourceConfidence {
		cfg.SourceConfidence[kind] = conf
	}
	return cfg, nil
}

// confidenceFor returns the base confidence for a fragment kind.
func (c Config) confidenceFor(kind model.FragmentKind) float64 {
	return c.SourceConfidence[kind]
}
