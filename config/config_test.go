package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angellco/auth0-bridge/internal/domain/identity"
)

func TestAuth0Config_Validate(t *testing.T) {
	valid := Auth0Config{
		Domain:       "x.example.com",
		ClientID:     "abc",
		ClientSecret: "secret",
		CallbackURL:  "https://site.example/auth/callback",
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.Domain = ""
	assert.ErrorContains(t, missing.Validate(), "AUTH0_DOMAIN")

	missing = valid
	missing.ClientID = ""
	assert.ErrorContains(t, missing.Validate(), "AUTH0_CLIENT_ID")

	missing = valid
	missing.ClientSecret = ""
	assert.ErrorContains(t, missing.Validate(), "AUTH0_CLIENT_SECRET")

	missing = valid
	missing.CallbackURL = ""
	assert.ErrorContains(t, missing.Validate(), "AUTH0_CALLBACK_URL")
}

func TestAuth0Config_Sanitize(t *testing.T) {
	cfg := Auth0Config{Domain: " x.example.com/ "}
	cfg.Sanitize()
	assert.Equal(t, "x.example.com", cfg.Domain)
	assert.Equal(t, 2*time.Hour, cfg.SessionDuration)
}

func TestSilentLoginConfig_Policy(t *testing.T) {
	cfg := SilentLoginConfig{
		ReferrerWhitelist: []string{"partner.example.com", " ", "other.example.org"},
		QueryParamWhitelist: []string{
			"utm_source=partner,sso=1",
			"campaign=spring",
			"",
		},
	}

	policy, err := cfg.Policy()

	require.NoError(t, err)
	assert.Equal(t, []string{"partner.example.com", "other.example.org"}, policy.ReferrerWhitelist)
	require.Len(t, policy.QueryParamWhitelist, 2)
	assert.Equal(t, identity.ParamGroup{"utm_source": "partner", "sso": "1"}, policy.QueryParamWhitelist[0])
	assert.Equal(t, identity.ParamGroup{"campaign": "spring"}, policy.QueryParamWhitelist[1])
}

func TestSilentLoginConfig_PolicyInvalidPair(t *testing.T) {
	cfg := SilentLoginConfig{QueryParamWhitelist: []string{"missing-equals"}}

	_, err := cfg.Policy()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-equals")
}

func TestSilentLoginConfig_EmptyPolicy(t *testing.T) {
	policy, err := SilentLoginConfig{}.Policy()
	require.NoError(t, err)
	assert.True(t, policy.Empty())
}
