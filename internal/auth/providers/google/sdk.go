package google

import "context"

// IDConfig mirrors the options of google.accounts.id.initialize.
type IDConfig struct {
	ClientID           string
	Callback           func(CredentialResponse)
	AutoSelect         bool
	CancelOnTapOutside bool
}

// CredentialResponse is what Identity Services hands to the callback.
type CredentialResponse struct {
	Credential string
	SelectBy   string
}

// IdentityServices is the slice of the Google Identity Services SDK the
// adapter uses. Implementations invoke the configured callback
// asynchronously, outside any Prompt call.
type IdentityServices interface {
	Initialize(cfg IDConfig)
	Prompt(ctx context.Context) error
	DisableAutoSelect()
}
