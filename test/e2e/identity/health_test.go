package identity_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/aussiebroadwan/askbar/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoints verifies liveness, readiness and JWKS on a fresh
// container.
func TestHealthEndpoints(t *testing.T) {
	baseURL := setupContainer(t, nil)
	client := identitysdk.NewClient(baseURL, nil)

	live, err := client.GetLiveness(t.Context())
	assertHealthy(t, live, err)

	ready, err := client.GetReadiness(t.Context())
	assertHealthy(t, ready, err)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	resp, err := http.Get(baseURL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var jwks jwtx.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
	t.Logf("Key ID: %s", jwks.Keys[0].Kid)
}
