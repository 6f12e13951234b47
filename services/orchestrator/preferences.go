package orchestrator

import (
	"sort"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
)

// Preferences maps a task type to its preferred providers, best first
type Preferences map[providers.TaskType][]providers.Kind

// DefaultPreferences favours accurate vision providers for documents and
// the fastest provider for summaries.
func DefaultPreferences() Preferences {
	return Preferences{
		providers.TaskDocumentExtraction: {providers.KindGemini, providers.KindAnthropic, providers.KindOpenAI, providers.KindGroq},
		providers.TaskVision:             {providers.KindGemini, providers.KindAnthropic, providers.KindOpenAI},
		providers.TaskSummarization:      {providers.KindGroq, providers.KindGemini, providers.KindOpenAI, providers.KindAnthropic},
		providers.TaskComplexAnalysis:    {providers.KindAnthropic, providers.KindOpenAI, providers.KindGemini, providers.KindGroq},
		providers.TaskGeneral:            {providers.KindGroq, providers.KindGemini, providers.KindOpenAI, providers.KindAnthropic},
	}
}

// order sorts configs by preference rank; providers the list does not name
// keep their priority order after the named ones.
func order(configs []providers.ProviderConfig, preferred []providers.Kind) []providers.ProviderConfig {
	rank := make(map[providers.Kind]int, len(preferred))
	for i, k := range preferred {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	rankOf := func(k providers.Kind) int {
		if r, ok := rank[k]; ok {
			return r
		}
		return len(preferred)
	}

	out := make([]providers.ProviderConfig, len(configs))
	copy(out, configs)
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].Kind) < rankOf(out[j].Kind)
	})
	return out
}
