// Package stages maps source proposal statuses onto the fixed target stage
// vocabulary the remote store recognizes, and derives close/probability
// attributes from the target stage. Pure lookups, no I/O.
package stages

import (
	"sort"
	"strings"

	"github.com/goliatone/go-proposal-sync/core"
)

type TargetStage string

const (
	StageQualification  TargetStage = "Qualification"
	StageNeedsAnalysis  TargetStage = "Needs Analysis"
	StageValueProp      TargetStage = "Value Proposition"
	StageDecisionMakers TargetStage = "Id. Decision Makers"
	StageProposal       TargetStage = "Proposal/Price Quote"
	StageNegotiation    TargetStage = "Negotiation/Review"
	StageClosedWon      TargetStage = "Closed Won"
	StageClosedLost     TargetStage = "Closed Lost"
)

// targetBySource is many-to-one: several source statuses collapse onto the
// same target stage. Keys are lowercase and trimmed.
var targetBySource = map[string]TargetStage{
	"draft":         StageQualification,
	"new":           StageQualification,
	"qualification": StageQualification,
	"open":          StageNeedsAnalysis,
	"in_review":     StageNeedsAnalysis,
	"presented":     StageValueProp,
	"pitched":       StageValueProp,
	"shortlisted":   StageDecisionMakers,
	"sent":          StageProposal,
	"proposal":      StageProposal,
	"quoted":        StageProposal,
	"negotiation":   StageNegotiation,
	"under_review":  StageNegotiation,
	"accepted":      StageClosedWon,
	"won":           StageClosedWon,
	"approved":      StageClosedWon,
	"rejected":      StageClosedLost,
	"lost":          StageClosedLost,
	"declined":      StageClosedLost,
	"cancelled":     StageClosedLost,
	"expired":       StageClosedLost,
}

var probabilityByStage = map[TargetStage]int{
	StageQualification:  10,
	StageNeedsAnalysis:  25,
	StageValueProp:      40,
	StageDecisionMakers: 55,
	StageProposal:       65,
	StageNegotiation:    80,
	StageClosedWon:      100,
	StageClosedLost:     0,
}

var closedStages = map[TargetStage]struct{}{
	StageClosedWon:  {},
	StageClosedLost: {},
}

// MapToTarget resolves a source status onto the target vocabulary. Lookup
// is case-insensitive and ignores surrounding whitespace. Unknown statuses
// fail loudly; callers match on the text code or the embedded value.
func MapToTarget(source string) (TargetStage, error) {
	normalized := strings.TrimSpace(strings.ToLower(source))
	if normalized == "" {
		return "", invalidInputError("stages: source stage is required")
	}
	target, ok := targetBySource[normalized]
	if !ok {
		return "", unmappedStageError(normalized)
	}
	return target, nil
}

// IsClosed reports whether the stage is a terminal outcome. Unrecognized
// values are open, not an error.
func IsClosed(stage TargetStage) bool {
	_, ok := closedStages[stage]
	return ok
}

// ProbabilityFor returns the table default for the stage, or 0 when the
// stage carries no entry: unknown means no forecast weight.
func ProbabilityFor(stage TargetStage) int {
	return probabilityByStage[stage]
}

// SourcesFor is the inverse lookup: every source status that collapses
// onto the given target stage, sorted.
func SourcesFor(stage TargetStage) []string {
	sources := []string{}
	for source, target := range targetBySource {
		if target == stage {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources
}

// TargetStages lists the full target vocabulary in pipeline order.
func TargetStages() []TargetStage {
	return []TargetStage{
		StageQualification,
		StageNeedsAnalysis,
		StageValueProp,
		StageDecisionMakers,
		StageProposal,
		StageNegotiation,
		StageClosedWon,
		StageClosedLost,
	}
}

type Mapping struct{}

func NewMapping() Mapping {
	return Mapping{}
}

func (Mapping) Summary() core.MappingSummary {
	sourceKeys := make([]string, 0, len(targetBySource))
	table := make(map[string]string, len(targetBySource))
	for source, target := range targetBySource {
		sourceKeys = append(sourceKeys, source)
		table[source] = string(target)
	}
	sort.Strings(sourceKeys)

	targets := TargetStages()
	targetNames := make([]string, 0, len(targets))
	for _, target := range targets {
		targetNames = append(targetNames, string(target))
	}

	closed := make([]string, 0, len(closedStages))
	for stage := range closedStages {
		closed = append(closed, string(stage))
	}
	sort.Strings(closed)

	return core.MappingSummary{
		Total:        len(targetBySource),
		SourceKeys:   sourceKeys,
		TargetStages: targetNames,
		ClosedStages: closed,
		Table:        table,
	}
}

var _ core.MappingIntrospector = Mapping{}
