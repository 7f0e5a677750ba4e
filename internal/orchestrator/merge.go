package orchestrator

import (
	"github.com/docmindlabs/docmind/internal/providers"
)

// MergedResult is the ensemble consensus over N provider results. Its field
// key set is the union of every contributing result's key set.
type MergedResult struct {
	Fields                map[string]providers.Value `json:"fields"`
	ContributingProviders []string                   `json:"contributing_providers"`
	AgreementStats        map[string]float64         `json:"agreement_stats"`
}

// Merge collapses provider results into one field map with a per-field,
// per-kind consensus rule: numbers average, lists union, text takes the
// plurality vote, anything else keeps the first non-null contribution. The
// dispatch happens per invocation on the first non-null value's kind, not on
// a fixed global schema.
func Merge(results []providers.InferenceResult) MergedResult {
	merged := MergedResult{
		Fields:         map[string]providers.Value{},
		AgreementStats: map[string]float64{},
	}
	if len(results) == 0 {
		return merged
	}
	for _, r := range results {
		merged.ContributingProviders = append(merged.ContributingProviders, r.ProviderID)
	}

	// trivial case: nothing to vote on
	if len(results) == 1 {
		merged.Fields = results[0].Fields
		for k := range results[0].Fields {
			merged.AgreementStats[k] = 1
		}
		return merged
	}

	total := float64(len(results))
	for _, key := range unionKeys(results) {
		var values []providers.Value
		for _, r := range results {
			if v, ok := r.Fields[key]; ok && !v.IsNull() {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			merged.Fields[key] = providers.Null()
			merged.AgreementStats[key] = 0
			continue
		}

		var out providers.Value
		var agreeing int
		switch values[0].Kind {
		case providers.KindNumber:
			out, agreeing = meanNumber(values)
		case providers.KindList:
			out, agreeing = unionList(values)
		case providers.KindText:
			out, agreeing = voteText(values)
		default:
			out, agreeing = values[0], 1
		}
		merged.Fields[key] = out
		merged.AgreementStats[key] = providers.Clamp01(float64(agreeing) / total)
	}
	return merged
}

// unionKeys walks results in order so first-encounter semantics stay
// deterministic for a given input order.
func unionKeys(results []providers.InferenceResult) []string {
	seen := map[string]bool{}
	var keys []string
	for _, r := range results {
		for k := range r.Fields {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func meanNumber(values []providers.Value) (providers.Value, int) {
	var sum float64
	var n int
	for _, v := range values {
		if v.Kind == providers.KindNumber {
			sum += v.Num
			n++
		}
	}
	if n == 0 {
		return values[0], 1
	}
	return providers.Number(sum / float64(n)), n
}

func unionList(values []providers.Value) (providers.Value, int) {
	seen := map[string]bool{}
	var items []string
	var n int
	for _, v := range values {
		if v.Kind != providers.KindList {
			continue
		}
		n++
		for _, it := range v.List {
			if !seen[it] {
				seen[it] = true
				items = append(items, it)
			}
		}
	}
	if n == 0 {
		return values[0], 1
	}
	return providers.List(items), n
}

func voteText(values []providers.Value) (providers.Value, int) {
	counts := map[string]int{}
	var order []string
	for _, v := range values {
		if v.Kind != providers.KindText {
			continue
		}
		if counts[v.Str] == 0 {
			order = append(order, v.Str)
		}
		counts[v.Str]++
	}
	if len(order) == 0 {
		return values[0], 1
	}
	// plurality; ties go to the first-encountered value
	winner := order[0]
	for _, s := range order {
		if counts[s] > counts[winner] {
			winner = s
		}
	}
	return providers.Text(winner), counts[winner]
}
