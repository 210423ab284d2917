package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	natsImage        = "nats:2.11.7-alpine"
	containerStartup = 30 * time.Second
	testConnTimeout  = 5 * time.Second
)

// TestClient is a connected Client backed by a NATS testcontainer.
type TestClient struct {
	Client *Client
	URL    string

	container testcontainers.Container
}

// TestOption configures a TestClient.
type TestOption func(*testSetup)

type testSetup struct {
	jetstream bool
}

// WithTestJetStream starts the server with JetStream and builds the client WithJetStream.
func WithTestJetStream() TestOption {
	return func(s *testSetup) { s.jetstream = true }
}

// NewTestClient starts a NATS container, connects a Client to it and tears
// both down when t ends.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	var setup testSetup
	for _, opt := range opts {
		opt(&setup)
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerStartup+testConnTimeout)
	defer cancel()

	tc, err := startTestClient(ctx, setup)
	if err != nil {
		t.Fatalf("NATS test client: %v", err)
	}
	t.Cleanup(tc.terminate)
	return tc
}

func startTestClient(ctx context.Context, setup testSetup) (*TestClient, error) {
	cmd := []string{"--port", "4222", "--http_port", "8222"}
	if setup.jetstream {
		cmd = append(cmd, "--js")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        natsImage,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          cmd,
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/healthz").WithPort("8222/tcp").WithStartupTimeout(containerStartup),
			),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	tc := &TestClient{container: container}
	if err := tc.connect(ctx, setup); err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}
	return tc, nil
}

func (tc *TestClient) connect(ctx context.Context, setup testSetup) error {
	endpoint, err := tc.container.PortEndpoint(ctx, "4222/tcp", "nats")
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}

	opts := []Option{WithTimeout(testConnTimeout), WithMaxReconnects(0), WithName("listenctl-test")}
	if setup.jetstream {
		opts = append(opts, WithJetStream())
	}
	client, err := NewClient(endpoint, opts...)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}

	tc.Client = client
	tc.URL = endpoint
	return nil
}

func (tc *TestClient) terminate() {
	if tc.Client != nil {
		_ = tc.Client.Close(context.Background())
	}
	_ = tc.container.Terminate(context.Background())
}
