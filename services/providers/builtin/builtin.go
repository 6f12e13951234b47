// Package builtin assembles the static adapter table: one adapter per
// providers.Kind.
package builtin

import (
	"net/http"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers/anthropic"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers/gemini"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers/openai"
)

// Adapters returns an adapter for every declared kind
func Adapters(httpClient *http.Client) []providers.Adapter {
	return []providers.Adapter{
		openai.NewAdapter(providers.KindGroq, httpClient),
		openai.NewAdapter(providers.KindOpenAI, httpClient),
		gemini.NewAdapter(httpClient),
		anthropic.NewAdapter(httpClient),
	}
}

// NewRegistry builds a registry over the builtin adapter table
func NewRegistry(configs []providers.ProviderConfig, httpClient *http.Client) (*providers.Registry, error) {
	return providers.NewRegistry(configs, Adapters(httpClient)...)
}
