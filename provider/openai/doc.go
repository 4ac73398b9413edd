// Package openai implements provider.Provider on the OpenAI chat completions
// API.
//
// Models are memoized in a registry keyed by name and temperature, and build
// their client lazily:
//
//	m := openai.Model("gpt-4o-mini", 0, option.WithHTTPClient(client))
//	events, err := m.Provider().ChatCompletion(ctx, params)
package openai
