// Package enrich reconciles raw fetched fragments into a structured
// place update. Parsing failures degrade to missing fields; only a run
// with nothing usable at all is reported as an error.
package enrich

import (
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/parse"
	"github.com/placedir/refresh-cli/internal/quality"
)

// ErrNoUsableData means every source failed to produce a fragment. The
// worker maps this to the queue's retry policy instead of writing a
// garbage place update.
var ErrNoUsableData = eris.New("enrich: no usable data from any source")

// Orchestrator runs parsers over fetched fragments, reconciles
// multi-source values and produces the final place update with its
// quality score.
type Orchestrator struct {
	cfg Config
	now func() time.Time
}

// New creates an Orchestrator with the given reconciliation config.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, now: time.Now}
}

// WithNow fixes the clock for testing.
func (o *Orchestrator) WithNow(now time.Time) *Orchestrator {
	o.now = func() time.Time { return now }
	return o
}

// Enrich reconciles the fragments for a place into a PlaceUpdate. The
// update is scored against the merged record, so fields the run did not
// learn keep contributing their stored values. A single bad fragment
// never fails the run; zero fragments does.
func (o *Orchestrator) Enrich(place model.Place, fragments []model.Fragment) (model.PlaceUpdate, error) {
	if len(fragments) == 0 {
		return model.PlaceUpdate{}, ErrNoUsableData
	}

	in := Input{Fragments: fragments, cfg: o.cfg}
	for _, f := range in.fragmentsOf(model.FragmentSchemaOrg, model.FragmentWebsite) {
		if sd := parse.ExtractSchemaOrg(f.Content); !sd.Empty() {
			in.Schema = append(in.Schema, sd)
		}
	}

	var update model.PlaceUpdate
	flags := model.NewFlagSet()

	if rating := reconcileRatings(in); rating != nil {
		update.AvgRating = rating.Value
		update.ReviewCount = rating.Count
		update.RatingSource = rating.Source
		update.RatingConfidence = rating.Confidence
		if rating.Rejected > 0 {
			flags.Add(model.FlagSuspectRating)
		}
	}

	if c := resolve(hoursStrategies(), in); c != nil {
		update.OpeningHours = c.Value.(model.WeekSchedule)
	}

	if c := resolve(aboutStrategies(), in); c != nil {
		about := c.Value.(parse.AboutResult)
		if about.Thin {
			// Below the usable window: flag it, do not store it.
			flags.Add(model.FlagThinAboutText)
		} else {
			update.AboutText = about.Text
		}
	}

	update.Phone = o.resolvePhone(in)
	update.Facts = extractFacts(in)

	now := o.now()
	merged := place.Apply(update, now)
	score, scoreFlags := quality.Score(merged, now)
	for _, f := range scoreFlags {
		flags.Add(f)
	}
	update.QualityScore = score
	update.QualityFlags = flags.Sorted()

	zap.L().Debug("enrich: reconciled place update",
		zap.Int64("place_id", place.ID),
		zap.Int("fragments", len(fragments)),
		zap.Int("quality_score", score),
		zap.Float64("avg_rating", update.AvgRating),
	)
	return update, nil
}

// resolvePhone takes the first schema.org telephone; free text is too
// noisy to mine for phone numbers reliably.
func (o *Orchestrator) resolvePhone(in Input) string {
	for _, sd := range in.Schema {
		if sd.Phone != "" {
			return sd.Phone
		}
	}
	return ""
}

var foundedRe = regexp.MustCompile(`(?i)\b(?:founded|established|serving\s+\w+\s+since|since)\s+(?:in\s+)?((?:18|19|20)\d{2})\b`)

// extractFacts merges structured attributes from every source into one
// key/value set. Later fragments overwrite earlier values for the same
// key; the whole set replaces the stored one on apply.
func extractFacts(in Input) map[string]string {
	facts := make(map[string]string)

	for _, sd := range in.Schema {
		if sd.Name != "" {
			facts["registered_name"] = sd.Name
		}
		if sd.Address != "" {
			facts["address"] = sd.Address
		}
	}
	for _, f := range in.fragmentsOf(model.FragmentAIReader, model.FragmentWebsite) {
		if m := foundedRe.FindStringSubmatch(f.Content); m != nil {
			facts["founded"] = m[1]
		}
	}

	if len(facts) == 0 {
		return nil
	}
	return facts
}
