package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Ensemble invokes every capable, available provider concurrently and merges
// whatever succeeded. A provider failure never cancels or corrupts its
// siblings; 1-of-N success still produces a usable, if thinner, result.
type Ensemble struct {
	registry *providers.Registry
	history  *History
}

func NewEnsemble(registry *providers.Registry, history *History) *Ensemble {
	if history == nil {
		history = NewHistory(0)
	}
	return &Ensemble{registry: registry, history: history}
}

func (e *Ensemble) History() *History { return e.history }

// fanOut runs one invocation per handle on a pool sized to the handle count
// and returns the successful results in completion order.
func (e *Ensemble) fanOut(ctx context.Context, handles []*providers.Handle, req providers.InferenceRequest) []providers.InferenceResult {
	var (
		mu      sync.Mutex
		results []providers.InferenceResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(handles))

	for _, h := range handles {
		h := h
		g.Go(func() error {
			log := telemetry.L().With().Str("provider", h.ID).Str("task", string(req.Task)).Logger()

			// one panicking provider must not take down the group
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("provider_panic")
				}
			}()

			res, err := h.Client.Invoke(gctx, req)
			if err != nil {
				// isolated failure: log, record nothing, never fail the group
				log.Error().Err(err).Msg("ensemble_attempt_failed")
				return nil
			}
			if len(res.Fields) == 0 {
				log.Warn().Msg("ensemble_empty_result")
				return nil
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			log.Info().Int("fields", res.NonNull()).Int64("latency_ms", res.RawLatencyMs).Msg("ensemble_attempt_ok")
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Classify runs the classification ensemble: plurality vote over labels (ties
// go to the first label seen in completion order, an accepted
// nondeterminism), confidence is the mean over every contribution regardless
// of its vote.
func (e *Ensemble) Classify(ctx context.Context, text, prompt string) (string, float64, []string) {
	handles := e.registry.Capable(providers.TaskClassify)
	if len(handles) == 0 {
		return providers.LabelUnknown, 0, nil
	}

	req := providers.InferenceRequest{Text: text, Task: providers.TaskClassify, Prompt: prompt}
	results := e.fanOut(ctx, handles, req)
	if len(results) == 0 {
		return providers.LabelUnknown, 0, nil
	}

	counts := map[string]int{}
	var order []string
	var confSum float64
	var used []string
	for _, r := range results {
		label := r.Label()
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
		confSum += r.Confidence()
		used = append(used, r.ProviderID)
	}

	winner := order[0]
	for _, l := range order {
		if counts[l] > counts[winner] {
			winner = l
		}
	}
	avg := providers.Clamp01(confSum / float64(len(results)))

	telemetry.L().Info().Str("type", winner).Float64("confidence", avg).Strs("providers", used).Msg("ensemble_vote")
	return winner, avg, used
}

// Extract runs the extraction ensemble and merges the field maps. Zero
// successes yield an empty MergedResult and an empty provider list, a valid
// outcome rather than an error. The individual results are returned alongside
// the merge for persistence.
func (e *Ensemble) Extract(ctx context.Context, text, docType, prompt string) (MergedResult, []providers.InferenceResult) {
	handles := e.registry.Capable(providers.TaskExtract)
	req := providers.InferenceRequest{Text: text, Task: providers.TaskExtract, Prompt: prompt}

	var results []providers.InferenceResult
	if len(handles) > 0 {
		results = e.fanOut(ctx, handles, req)
	}
	if len(results) == 0 {
		telemetry.L().Error().Str("doc_type", docType).Msg("ensemble_all_providers_failed")
		return MergedResult{Fields: map[string]providers.Value{}, AgreementStats: map[string]float64{}}, nil
	}

	merged := Merge(results)
	telemetry.L().Info().
		Int("results", len(results)).
		Int("fields", len(merged.Fields)).
		Strs("providers", merged.ContributingProviders).
		Msg("ensemble_merged")

	// observable side effect only; the merge above is already final
	e.history.Append(Record{
		Text:       text,
		DocType:    docType,
		Merged:     merged.Fields,
		Individual: results,
		At:         time.Now(),
	})
	return merged, results
}
