package adapter

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
}

func newTestNormalizer() *Normalizer {
	return New(Config{Now: fixedClock()})
}

func TestNormalize_WrapperCreate(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"model":  "proposal",
		"action": "create",
		"body": map[string]any{
			"proposalNumber": "X1",
			"title":          "Website redesign",
			"status":         "sent",
			"total":          "100.5",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if canonical["kind"] != string(core.EventCreated) {
		t.Fatalf("expected created kind, got %v", canonical["kind"])
	}
	if canonical["proposalId"] != "X1" {
		t.Fatalf("expected proposal id X1, got %v", canonical["proposalId"])
	}
	if canonical["title"] != "Website redesign" {
		t.Fatalf("unexpected title %v", canonical["title"])
	}
	if canonical["stage"] != "sent" {
		t.Fatalf("expected intermediate stage sent, got %v", canonical["stage"])
	}
	amount, ok := canonical["amount"].(map[string]any)
	if !ok {
		t.Fatalf("expected amount map, got %T", canonical["amount"])
	}
	if amount["total"] != 100.5 {
		t.Fatalf("expected total 100.5, got %v", amount["total"])
	}
	if canonical["closeDate"] != "2025-04-09" {
		t.Fatalf("expected derived close date, got %v", canonical["closeDate"])
	}
}

func TestNormalize_WrapperDeleteCarriesReason(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"action": "destroy",
		"body": map[string]any{
			"id": "42",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if canonical["kind"] != string(core.EventDeleted) {
		t.Fatalf("expected deleted kind, got %v", canonical["kind"])
	}
	if canonical["reason"] != `source action "destroy" requested deletion` {
		t.Fatalf("unexpected reason %v", canonical["reason"])
	}
}

func TestNormalize_DirectShapeIsUpdate(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"proposalNumber": 7.0,
		"title":          "Direct push",
		"status":         "accepted",
		"amount":         250.0,
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if canonical["kind"] != string(core.EventUpdated) {
		t.Fatalf("expected updated kind, got %v", canonical["kind"])
	}
	if canonical["proposalId"] != "7" {
		t.Fatalf("expected proposal id 7, got %v", canonical["proposalId"])
	}
	if canonical["stage"] != "accepted" {
		t.Fatalf("expected accepted stage, got %v", canonical["stage"])
	}
}

func TestNormalize_UnrecognizedPassesThrough(t *testing.T) {
	normalizer := newTestNormalizer()

	payload := map[string]any{"kind": "updated", "proposalId": "P-1"}
	out, err := normalizer.Normalize(payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out["proposalId"] != "P-1" || out["kind"] != "updated" {
		t.Fatalf("expected pass-through, got %v", out)
	}
}

func TestNormalize_UnsupportedAction(t *testing.T) {
	normalizer := newTestNormalizer()

	_, err := normalizer.Normalize(map[string]any{
		"action": "archive",
		"body":   map[string]any{"id": "1"},
	})
	if err == nil {
		t.Fatalf("expected unsupported action error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != core.SyncErrorUnsupportedAction {
		t.Fatalf("expected %q, got %q", core.SyncErrorUnsupportedAction, rich.TextCode)
	}
}

func TestNormalize_MissingIdentifier(t *testing.T) {
	normalizer := newTestNormalizer()

	_, err := normalizer.Normalize(map[string]any{
		"action": "create",
		"body":   map[string]any{"title": "Nameless"},
	})
	if err == nil {
		t.Fatalf("expected missing identifier error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != core.SyncErrorMissingIdentifier {
		t.Fatalf("expected %q, got %q", core.SyncErrorMissingIdentifier, rich.TextCode)
	}
}

func TestResolveAmount_Precedence(t *testing.T) {
	normalizer := newTestNormalizer()

	cases := []struct {
		name     string
		source   map[string]any
		expected float64
	}{
		{
			name:     "explicit total wins",
			source:   map[string]any{"total": 500.0, "amount": 100.0},
			expected: 500,
		},
		{
			name:     "amount when no total",
			source:   map[string]any{"amount": 100.0},
			expected: 100,
		},
		{
			name: "line items sum price times quantity",
			source: map[string]any{
				"lineItems": []any{
					map[string]any{"price": 10.0, "quantity": 3.0},
					map[string]any{"price": 2.5, "quantity": 2.0},
				},
			},
			expected: 35,
		},
		{
			name:     "hours worked times rate",
			source:   map[string]any{"hoursWorked": 4.0},
			expected: 600,
		},
		{
			name:     "fallback when nothing prices it",
			source:   map[string]any{},
			expected: DefaultFallbackAmount,
		},
		{
			name:     "non-positive total falls back",
			source:   map[string]any{"total": 0.0},
			expected: DefaultFallbackAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizer.resolveAmount(tc.source)
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestBuildCanonical_PreservesLeftoverSourceFields(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"action": "update",
		"body": map[string]any{
			"id":        "P-9",
			"title":     "Kept",
			"ownerName": "pat",
			"priority":  "high",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	leftover, ok := canonical["source"].(map[string]any)
	if !ok {
		t.Fatalf("expected leftover source map, got %T", canonical["source"])
	}
	if leftover["ownerName"] != "pat" || leftover["priority"] != "high" {
		t.Fatalf("unexpected leftover %v", leftover)
	}
	if _, consumed := leftover["title"]; consumed {
		t.Fatalf("consumed field leaked into leftover: %v", leftover)
	}
}

func TestNormalize_ExplicitCloseDatePreferred(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"action": "update",
		"body": map[string]any{
			"id":                "P-3",
			"expectedCloseDate": "2025-06-30",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if canonical["closeDate"] != "2025-06-30" {
		t.Fatalf("expected explicit close date, got %v", canonical["closeDate"])
	}
}

func TestNormalize_DescriptionFallsBackToRemarksThenDefault(t *testing.T) {
	normalizer := newTestNormalizer()

	canonical, err := normalizer.Normalize(map[string]any{
		"action": "update",
		"body": map[string]any{
			"id":      "P-5",
			"remarks": "customer asked for phased delivery",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if canonical["description"] != "customer asked for phased delivery" {
		t.Fatalf("unexpected description %v", canonical["description"])
	}

	canonical, err = normalizer.Normalize(map[string]any{
		"action": "update",
		"body":   map[string]any{"id": "P-6"},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if canonical["description"] != "Proposal P-6 synchronized from source system" {
		t.Fatalf("unexpected default description %v", canonical["description"])
	}
}
