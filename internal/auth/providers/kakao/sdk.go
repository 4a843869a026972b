package kakao

import "context"

// DefaultScopes are the consent items requested at login.
const DefaultScopes = "profile_nickname,profile_image,account_email"

// AuthResponse is the token set returned by a successful authorization.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// UserInfo is the /v2/user/me response.
type UserInfo struct {
	ID           int64         `json:"id"`
	Properties   *Properties   `json:"properties,omitempty"`
	KakaoAccount *KakaoAccount `json:"kakao_account,omitempty"`
}

type Properties struct {
	Nickname       string `json:"nickname,omitempty"`
	ProfileImage   string `json:"profile_image,omitempty"`
	ThumbnailImage string `json:"thumbnail_image,omitempty"`
}

type KakaoAccount struct {
	Email   string   `json:"email,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
}

type Profile struct {
	Nickname          string `json:"nickname,omitempty"`
	ProfileImageURL   string `json:"profile_image_url,omitempty"`
	ThumbnailImageURL string `json:"thumbnail_image_url,omitempty"`
}

// SDK is the slice of the Kakao SDK the adapter uses.
type SDK interface {
	IsInitialized() bool
	Init(appKey string) error
	// Login runs the authorization step and blocks until the user finishes it.
	Login(ctx context.Context, scopes string) (*AuthResponse, error)
	// Me fetches the profile for accessToken.
	Me(ctx context.Context, accessToken string) (*UserInfo, error)
	// AccessToken returns the token the SDK currently holds, or "".
	AccessToken() string
	// Restore adopts an access token persisted by an earlier process. It
	// fails, holding nothing, when Kakao no longer accepts the token.
	Restore(ctx context.Context, accessToken string) error
	Logout(ctx context.Context) error
}
