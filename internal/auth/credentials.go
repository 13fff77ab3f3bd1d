package auth

import (
	"net/url"

	"github.com/resim-ai/launch/internal/errs"
)

const (
	// DefaultAudience is the API audience requested in every grant.
	DefaultAudience = "https://api.resim.ai"

	passwordRealmGrantType = "http://auth0.com/oauth/grant-type/password-realm"
	passwordRealm          = "cli-users"
)

// ErrCredentialsNotFound is returned when neither grant flow can be built
// from the configured credentials.
var ErrCredentialsNotFound error = errs.New(errs.CodeConfiguration,
	"credentials not found: set client_id and client_secret, or resim_username and resim_password")

// Credentials holds both credential variants as configured. At most one is
// used; client credentials win when both are populated.
type Credentials struct {
	ClientID     string
	ClientSecret string

	Username         string
	Password         string
	PasswordClientID string
}

// grant is one OAuth grant flow.
type grant interface {
	name() string
	form(audience string) url.Values
}

type clientCredentialsGrant struct {
	clientID     string
	clientSecret string
}

func (g clientCredentialsGrant) name() string { return "client_credentials" }

func (g clientCredentialsGrant) form(audience string) url.Values {
	return url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"audience":      {audience},
	}
}

type passwordRealmGrant struct {
	clientID string
	username string
	password string
}

func (g passwordRealmGrant) name() string { return "password_realm" }

func (g passwordRealmGrant) form(audience string) url.Values {
	return url.Values{
		"grant_type": {passwordRealmGrantType},
		"realm":      {passwordRealm},
		"client_id":  {g.clientID},
		"audience":   {audience},
		"username":   {g.username},
		"password":   {g.password},
	}
}

// grant selects the flow these credentials support.
func (c Credentials) grant() (grant, error) {
	switch {
	case c.ClientID != "" && c.ClientSecret != "":
		return clientCredentialsGrant{clientID: c.ClientID, clientSecret: c.ClientSecret}, nil
	case c.Username != "" && c.Password != "":
		return passwordRealmGrant{clientID: c.PasswordClientID, username: c.Username, password: c.Password}, nil
	default:
		return nil, ErrCredentialsNotFound
	}
}

// Flow names the grant flow these credentials select, or "" when neither
// variant is complete.
func (c Credentials) Flow() string {
	g, err := c.grant()
	if err != nil {
		return ""
	}
	return g.name()
}
