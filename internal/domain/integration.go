package domain

import (
	"encoding/json"
	"time"
)

const redacted = "[REDACTED]"

// Secret is an opaque credential value. It never prints or serializes its contents;
// only the platform client constructors call Reveal.
type Secret string

// String implements fmt.Stringer
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value
func (s Secret) GoString() string {
	return s.String()
}

// MarshalJSON implements json.Marshaler
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Reveal returns the raw credential
func (s Secret) Reveal() string {
	return string(s)
}

// IsZero reports whether the secret is unset
func (s Secret) IsZero() bool {
	return s == ""
}

// StoreIntegration holds the credentials of a Store. Which fields are used depends on the platform:
// Shopify uses AccessToken, WooCommerce uses APIKey/APISecret as consumer key/secret,
// Laravel uses AccessToken (falling back to APIKey) as the bearer token.
type StoreIntegration struct {
	StoreID       string    `json:"store_id"`
	APIKey        Secret    `json:"api_key"`
	APISecret     Secret    `json:"api_secret"`
	AccessToken   Secret    `json:"access_token"`
	WebhookSecret Secret    `json:"webhook_secret"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BearerToken returns the token used by bearer-authenticated platforms
func (i *StoreIntegration) BearerToken() Secret {
	if !i.AccessToken.IsZero() {
		return i.AccessToken
	}
	return i.APIKey
}
