package stages

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func TestMapToTarget_NormalizesCaseAndWhitespace(t *testing.T) {
	variants := []string{"proposal", "Proposal", "  PROPOSAL  ", "proposal "}
	for _, variant := range variants {
		target, err := MapToTarget(variant)
		if err != nil {
			t.Fatalf("map %q: %v", variant, err)
		}
		if target != StageProposal {
			t.Fatalf("map %q: expected %q, got %q", variant, StageProposal, target)
		}
	}
}

func TestMapToTarget_CoversKnownSources(t *testing.T) {
	cases := map[string]TargetStage{
		"draft":       StageQualification,
		"open":        StageNeedsAnalysis,
		"presented":   StageValueProp,
		"shortlisted": StageDecisionMakers,
		"sent":        StageProposal,
		"negotiation": StageNegotiation,
		"won":         StageClosedWon,
		"accepted":    StageClosedWon,
		"lost":        StageClosedLost,
		"expired":     StageClosedLost,
	}
	for source, expected := range cases {
		target, err := MapToTarget(source)
		if err != nil {
			t.Fatalf("map %q: %v", source, err)
		}
		if target != expected {
			t.Fatalf("map %q: expected %q, got %q", source, expected, target)
		}
	}
}

func TestMapToTarget_EmptyIsInvalidInput(t *testing.T) {
	_, err := MapToTarget("   ")
	if err == nil {
		t.Fatalf("expected error for blank stage")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestMapToTarget_UnknownFailsLoudlyWithSourceInMessage(t *testing.T) {
	_, err := MapToTarget("totally_unknown")
	if err == nil {
		t.Fatalf("expected error for unknown stage")
	}
	if !strings.Contains(err.Error(), "totally_unknown") {
		t.Fatalf("expected message to contain the source stage, got %q", err.Error())
	}
	if !IsUnmapped(err) {
		t.Fatalf("expected unmapped stage error, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != core.SyncErrorUnmappedStage {
		t.Fatalf("expected %q text code, got %q", core.SyncErrorUnmappedStage, rich.TextCode)
	}
}

func TestIsClosed_TotalOverTargetStages(t *testing.T) {
	for _, target := range TargetStages() {
		closed := IsClosed(target)
		terminal := target == StageClosedWon || target == StageClosedLost
		if closed != terminal {
			t.Fatalf("stage %q: closed=%v, terminal=%v", target, closed, terminal)
		}
	}
}

func TestProbabilityFor_TerminalStages(t *testing.T) {
	if got := ProbabilityFor(StageClosedWon); got != 100 {
		t.Fatalf("expected 100 for closed won, got %d", got)
	}
	if got := ProbabilityFor(StageClosedLost); got != 0 {
		t.Fatalf("expected 0 for closed lost, got %d", got)
	}
	if got := ProbabilityFor(TargetStage("bogus")); got != 0 {
		t.Fatalf("expected 0 for unknown stage, got %d", got)
	}
}

func TestSourcesFor_ReturnsSortedSources(t *testing.T) {
	sources := SourcesFor(StageClosedLost)
	if len(sources) == 0 {
		t.Fatalf("expected sources for closed lost")
	}
	for i := 1; i < len(sources); i++ {
		if sources[i-1] >= sources[i] {
			t.Fatalf("expected sorted sources, got %v", sources)
		}
	}
}

func TestMappingSummary_Snapshot(t *testing.T) {
	summary := NewMapping().Summary()
	if summary.Total != len(summary.Table) {
		t.Fatalf("total %d does not match table size %d", summary.Total, len(summary.Table))
	}
	if len(summary.SourceKeys) != summary.Total {
		t.Fatalf("expected %d source keys, got %d", summary.Total, len(summary.SourceKeys))
	}
	if len(summary.ClosedStages) != 2 {
		t.Fatalf("expected 2 closed stages, got %v", summary.ClosedStages)
	}
	if summary.Table["won"] != string(StageClosedWon) {
		t.Fatalf("expected won to map to %q, got %q", StageClosedWon, summary.Table["won"])
	}
}
