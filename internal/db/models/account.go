package models

import "time"

// Values stored in the auth_type column.
const (
	AuthTypeOAuth = "oauth"
	AuthTypePAT   = "pat"
)

// Account stores one locally-known identity against a finance server.
// At most one row has IsCurrent set; zero rows means logged out.
type Account struct {
	ID            int64 `gorm:"primaryKey"`
	ServerAddress string
	IsCurrent     bool `gorm:"default:false"`

	// Flattened authentication union, discriminated by AuthType.
	// Empty AuthType means a local-only account with no remote auth.
	AuthType     string
	AccessToken  string
	ClientID     string
	ClientSecret string
	OAuthCode    string
	RefreshToken string

	// State carries the OAuth "state" parameter while an authorization
	// flow is pending. Cleared when the flow completes; rows that keep it
	// are provisional and get reaped by the stale-account sweep.
	State string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthenticationType is the tagged union over the ways an account can
// authenticate. OAuth and PersonalAccessToken are the only variants; a nil
// value means no remote authentication.
type AuthenticationType interface {
	isAuthenticationType()
}

// OAuth authenticates via authorization-code + refresh-token exchange.
type OAuth struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	OAuthCode    string
	RefreshToken string
}

// PersonalAccessToken is a static bearer credential with no refresh
// mechanism.
type PersonalAccessToken struct {
	AccessToken string
}

func (OAuth) isAuthenticationType()               {}
func (PersonalAccessToken) isAuthenticationType() {}

// Auth reconstructs the authentication union from the stored columns.
func (a *Account) Auth() AuthenticationType {
	switch a.AuthType {
	case AuthTypeOAuth:
		return OAuth{
			AccessToken:  a.AccessToken,
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			OAuthCode:    a.OAuthCode,
			RefreshToken: a.RefreshToken,
		}
	case AuthTypePAT:
		return PersonalAccessToken{AccessToken: a.AccessToken}
	default:
		return nil
	}
}

// SetAuth writes the authentication union back into the stored columns.
func (a *Account) SetAuth(auth AuthenticationType) {
	switch t := auth.(type) {
	case OAuth:
		a.AuthType = AuthTypeOAuth
		a.AccessToken = t.AccessToken
		a.ClientID = t.ClientID
		a.ClientSecret = t.ClientSecret
		a.OAuthCode = t.OAuthCode
		a.RefreshToken = t.RefreshToken
	case PersonalAccessToken:
		a.AuthType = AuthTypePAT
		a.AccessToken = t.AccessToken
		a.ClientID = ""
		a.ClientSecret = ""
		a.OAuthCode = ""
		a.RefreshToken = ""
	default:
		a.AuthType = ""
		a.AccessToken = ""
		a.ClientID = ""
		a.ClientSecret = ""
		a.OAuthCode = ""
		a.RefreshToken = ""
	}
}
