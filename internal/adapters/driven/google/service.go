package google

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// ClientConfig holds the connection settings shared by the Google adapters.
type ClientConfig struct {
	// APIKey authenticates requests.
	APIKey string

	// Endpoint overrides the service base URL.
	Endpoint string

	// HTTPClient replaces the default transport. A custom client is used as
	// is, so it must authenticate requests itself. Tests use it to talk to
	// an httptest server.
	HTTPClient *http.Client
}

func (c ClientConfig) options() []option.ClientOption {
	var opts []option.ClientOption
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	} else {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return opts
}

// NewGenerativeService creates a Gemini (Generative Language API) service.
func NewGenerativeService(ctx context.Context, cfg ClientConfig) (*generativelanguage.Service, error) {
	return generativelanguage.NewService(ctx, cfg.options()...)
}

// NewCustomSearchService creates a Custom Search JSON API service.
func NewCustomSearchService(ctx context.Context, cfg ClientConfig) (*customsearch.Service, error) {
	return customsearch.NewService(ctx, cfg.options()...)
}

// ModelResource returns the "models/<name>" resource name Gemini expects.
func ModelResource(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
