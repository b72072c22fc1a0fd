package analytics

import (
	"net/http"
	"strings"

	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
)

const (
	HeaderAccountID     = "X-Account-ID"
	HeaderAuthorization = "Authorization"
)

// Credentials identify the account a query runs against
type Credentials struct {
	AccountID string
	APIToken  string
}

// CredentialsFromConfig returns the env or file sourced credentials
func CredentialsFromConfig(cfg config.AnalyticsConfig) Credentials {
	return Credentials{AccountID: cfg.AccountID, APIToken: cfg.APIToken}
}

// ResolveCredentials prefers per-request headers field by field and fills
// the rest from fallback. Either field missing is an auth error.
func ResolveCredentials(header http.Header, fallback Credentials) (Credentials, error) {
	creds := fallback

	if header != nil {
		if id := strings.TrimSpace(header.Get(HeaderAccountID)); id != "" {
			creds.AccountID = id
		}

		if token := bearerToken(header.Get(HeaderAuthorization)); token != "" {
			creds.APIToken = token
		}
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}

// Validate reports missing fields as an auth error
func (c Credentials) Validate() error {
	switch {
	case c.AccountID == "" && c.APIToken == "":
		return errors.NewAuthError("missing account id and API token")
	case c.AccountID == "":
		return errors.NewAuthError("missing account id")
	case c.APIToken == "":
		return errors.NewAuthError("missing API token")
	}

	return nil
}

func bearerToken(value string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
