package auth

// ProviderInfo describes one registered identity provider.
type ProviderInfo struct {
	Provider    string `json:"provider"`
	Initialized bool   `json:"initialized"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// ProvidersResponse is the body of GET /v2/auth/providers.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
	Current   string         `json:"current,omitempty"`
	State     string         `json:"state"`
}
