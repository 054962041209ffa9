package identity_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImageName = "askbar-identity-test:latest"
	testPassword  = "correct horse battery"
)

// TestMain builds the backend image once for every test and removes it
// afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building identity service Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up identity service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/askbar-identity/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// relaxedLimits keeps tests that make many quick requests under the limits.
var relaxedLimits = map[string]string{
	"RATELIMIT_AUTH_REQUESTS":  "1000",
	"RATELIMIT_AUTH_BURST":     "1000",
	"RATELIMIT_WRITE_REQUESTS": "1000",
	"RATELIMIT_WRITE_BURST":    "1000",
}

// setupContainer starts the backend and returns its base URL. Extra env
// entries override the defaults.
func setupContainer(t *testing.T, extraEnv map[string]string) string {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"ASKBAR_ISSUER": "askbar-identity",
		"ENV":           "test",
		"LOG_LEVEL":     "info",
		"LOG_FORMAT":    "json",
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/readyz").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// signUp registers a fresh identity on its own client.
func signUp(t *testing.T, baseURL, email string) (*identitysdk.Client, *identitysdk.Session) {
	t.Helper()

	c := identitysdk.NewClient(baseURL, nil)
	sess, err := c.SignUp(t.Context(), email, testPassword, nil)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	return c, sess
}

func assertHealthy(t *testing.T, health *identitysdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
