// Package adapter rewrites heterogeneous inbound proposal payloads into the
// canonical event shape. Detection runs an ordered recognizer list; the
// first match wins and unrecognized payloads pass through unchanged so the
// validator rejects them with full diagnostics.
package adapter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-proposal-sync/core"
)

const (
	DefaultHourlyRate     = 150.0
	DefaultFallbackAmount = 1000.0
	DefaultCloseDays      = 30
)

// actionKinds maps wrapper action values onto canonical event kinds.
var actionKinds = map[string]core.EventKind{
	"create":  core.EventCreated,
	"update":  core.EventUpdated,
	"delete":  core.EventDeleted,
	"destroy": core.EventDeleted,
}

// intermediateByStatus maps source-native statuses onto this system's own
// intermediate stage vocabulary, which the stages package later re-maps
// onto the target vocabulary. Unknown statuses deliberately fall back to
// "qualification" instead of failing: this inbound shape carries drafts
// and partial records.
var intermediateByStatus = map[string]string{
	"draft":       "draft",
	"pending":     "open",
	"generated":   "sent",
	"sent":        "sent",
	"viewed":      "presented",
	"negotiating": "negotiation",
	"accepted":    "accepted",
	"approved":    "approved",
	"rejected":    "rejected",
	"expired":     "expired",
	"cancelled":   "cancelled",
}

const defaultIntermediateStage = "qualification"

// consumedFields are source keys the transform interprets; everything else
// is preserved verbatim in the canonical payload's source side channel.
var consumedFields = map[string]struct{}{
	"model":             {},
	"action":            {},
	"body":              {},
	"proposalNumber":    {},
	"id":                {},
	"title":             {},
	"status":            {},
	"expectedCloseDate": {},
	"closeDate":         {},
	"total":             {},
	"amount":            {},
	"currency":          {},
	"lineItems":         {},
	"hoursWorked":       {},
	"remarks":           {},
	"content":           {},
}

type Config struct {
	HourlyRate     float64
	FallbackAmount float64
	CloseDays      int
	Now            func() time.Time
}

type recognizer struct {
	name      string
	matches   func(payload map[string]any) bool
	transform func(n *Normalizer, payload map[string]any) (map[string]any, error)
}

type Normalizer struct {
	hourlyRate     float64
	fallbackAmount float64
	closeDays      int
	now            func() time.Time
	recognizers    []recognizer
}

func New(cfg Config) *Normalizer {
	if cfg.HourlyRate <= 0 {
		cfg.HourlyRate = DefaultHourlyRate
	}
	if cfg.FallbackAmount <= 0 {
		cfg.FallbackAmount = DefaultFallbackAmount
	}
	if cfg.CloseDays <= 0 {
		cfg.CloseDays = DefaultCloseDays
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	normalizer := &Normalizer{
		hourlyRate:     cfg.HourlyRate,
		fallbackAmount: cfg.FallbackAmount,
		closeDays:      cfg.CloseDays,
		now:            cfg.Now,
	}
	// Order is a policy decision: wrapper before direct, first match wins.
	normalizer.recognizers = []recognizer{
		{
			name:      "wrapper",
			matches:   matchesWrapper,
			transform: (*Normalizer).transformWrapper,
		},
		{
			name:      "direct",
			matches:   matchesDirect,
			transform: (*Normalizer).transformDirect,
		},
	}
	return normalizer
}

// Normalize rewrites a recognized payload into canonical shape. Payloads
// that match no recognizer are returned unmodified for downstream
// validation to reject.
func (n *Normalizer) Normalize(payload map[string]any) (map[string]any, error) {
	if n == nil {
		return nil, fmt.Errorf("adapter: normalizer is nil")
	}
	if len(payload) == 0 {
		return nil, badInputError("adapter: payload is required", nil)
	}
	for _, candidate := range n.recognizers {
		if candidate.matches(payload) {
			return candidate.transform(n, payload)
		}
	}
	return payload, nil
}

func matchesWrapper(payload map[string]any) bool {
	if _, ok := payload["action"].(string); !ok {
		return false
	}
	_, hasBody := payload["body"].(map[string]any)
	return hasBody
}

func matchesDirect(payload map[string]any) bool {
	if _, ok := toNumber(payload["proposalNumber"]); !ok {
		return false
	}
	_, hasTitle := payload["title"].(string)
	return hasTitle
}

func (n *Normalizer) transformWrapper(payload map[string]any) (map[string]any, error) {
	action := strings.TrimSpace(strings.ToLower(payload["action"].(string)))
	kind, ok := actionKinds[action]
	if !ok {
		return nil, unsupportedActionError(action)
	}
	body, _ := payload["body"].(map[string]any)
	canonical, err := n.buildCanonical(kind, body)
	if err != nil {
		return nil, err
	}
	if kind == core.EventDeleted {
		canonical["reason"] = fmt.Sprintf("source action %q requested deletion", action)
	}
	return canonical, nil
}

func (n *Normalizer) transformDirect(payload map[string]any) (map[string]any, error) {
	// The direct shape carries no action signal; it is an update by policy.
	return n.buildCanonical(core.EventUpdated, payload)
}

func (n *Normalizer) buildCanonical(kind core.EventKind, source map[string]any) (map[string]any, error) {
	if len(source) == 0 {
		return nil, missingIdentifierError()
	}
	proposalID := resolveProposalID(source)
	if proposalID == "" {
		return nil, missingIdentifierError()
	}

	canonical := map[string]any{
		"kind":        string(kind),
		"proposalId":  proposalID,
		"title":       n.resolveTitle(source, proposalID),
		"stage":       resolveIntermediateStage(source),
		"closeDate":   n.resolveCloseDate(source),
		"description": resolveDescription(source, proposalID),
	}

	amount := map[string]any{"total": n.resolveAmount(source)}
	if currency, ok := source["currency"].(string); ok && strings.TrimSpace(currency) != "" {
		amount["currency"] = strings.TrimSpace(currency)
	}
	canonical["amount"] = amount

	if leftover := leftoverFields(source); len(leftover) > 0 {
		canonical["source"] = leftover
	}
	return canonical, nil
}

func resolveProposalID(source map[string]any) string {
	if value, ok := source["proposalNumber"]; ok {
		if id := idString(value); id != "" {
			return id
		}
	}
	if value, ok := source["id"]; ok {
		return idString(value)
	}
	return ""
}

func resolveIntermediateStage(source map[string]any) string {
	status, _ := source["status"].(string)
	status = strings.TrimSpace(strings.ToLower(status))
	if stage, ok := intermediateByStatus[status]; ok {
		return stage
	}
	return defaultIntermediateStage
}

func (n *Normalizer) resolveCloseDate(source map[string]any) string {
	for _, field := range []string{"expectedCloseDate", "closeDate"} {
		if value, ok := source[field].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return n.now().UTC().AddDate(0, 0, n.closeDays).Format("2006-01-02")
}

// resolveAmount applies the documented precedence: explicit total, explicit
// amount, line-item sum, hours-worked pricing, zero. A non-positive result
// is overridden with the fallback so downstream validation still passes;
// that leniency is policy, not an accident.
func (n *Normalizer) resolveAmount(source map[string]any) float64 {
	resolved := 0.0
	if total, ok := positiveNumber(source["total"]); ok {
		resolved = total
	} else if amount, ok := positiveNumber(source["amount"]); ok {
		resolved = amount
	} else if items, ok := source["lineItems"].([]any); ok && len(items) > 0 {
		resolved = sumLineItems(items)
	} else if hours, ok := toNumber(source["hoursWorked"]); ok {
		resolved = hours * n.hourlyRate
	}
	if resolved <= 0 {
		resolved = n.fallbackAmount
	}
	return round2(resolved)
}

func sumLineItems(items []any) float64 {
	total := 0.0
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		price, _ := toNumber(item["price"])
		quantity, _ := toNumber(item["quantity"])
		total += price * quantity
	}
	return total
}

func resolveDescription(source map[string]any, proposalID string) string {
	for _, field := range []string{"remarks", "content"} {
		if value, ok := source[field].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return fmt.Sprintf("Proposal %s synchronized from source system", proposalID)
}

func (n *Normalizer) resolveTitle(source map[string]any, proposalID string) string {
	if value, ok := source["title"].(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fmt.Sprintf("Proposal %s", proposalID)
}

func leftoverFields(source map[string]any) map[string]any {
	leftover := map[string]any{}
	for key, value := range source {
		if _, consumed := consumedFields[key]; consumed {
			continue
		}
		leftover[key] = value
	}
	return leftover
}

func idString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

func toNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func positiveNumber(value any) (float64, bool) {
	number, ok := toNumber(value)
	if !ok || number <= 0 {
		return 0, false
	}
	return number, true
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

var _ core.Normalizer = (*Normalizer)(nil)
