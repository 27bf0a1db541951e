// Package google provides shared infrastructure for the Google API adapters.
//
// The Gemini embedding and LLM adapters and the Custom Search web searcher
// use this package to:
//   - Create API-key authenticated service clients
//   - Convert Google API errors into domain.ProviderError so the embedding
//     client and the web searcher can tell transient failures from
//     permanent ones
//
// # Usage
//
//	svc, err := google.NewGenerativeService(ctx, google.ClientConfig{APIKey: key})
//	...
//	resp, err := svc.Models.BatchEmbedContents(model, req).Context(ctx).Do()
//	if err != nil {
//		return nil, google.WrapError("gemini", err)
//	}
package google
