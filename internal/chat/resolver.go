package chat

// ProviderInfo is the connection info for one provider endpoint.
type ProviderInfo struct {
	BaseURL string
	APIKey  string
}

// ModelRoute maps a model name to its provider. Either Provider names a
// configured provider, or the inline BaseURL/APIKey override the named
// provider's values field by field.
type ModelRoute struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// ProviderResolver resolves a model name to provider connection info.
// An unknown model resolves to zero info; the provider client fails
// naturally on the empty base URL.
type ProviderResolver func(model string) ProviderInfo

// NewProviderResolver builds a resolver over the configured provider
// and model maps. Inline route fields win over the named provider's.
func NewProviderResolver(providers map[string]ProviderInfo, models map[string]ModelRoute) ProviderResolver {
	return func(model string) ProviderInfo {
		route, ok := models[model]
		if !ok {
			return ProviderInfo{}
		}
		info := providers[route.Provider]
		if route.BaseURL != "" {
			info.BaseURL = route.BaseURL
		}
		if route.APIKey != "" {
			info.APIKey = route.APIKey
		}
		return info
	}
}
