package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/vitaliisemenov/configd/internal/ipc"
)

// DialProxyFactory returns a ProxyFactory that dials a single
// ipc.Client against baseURL/serviceID, retrying with backoff until ctx
// is cancelled. It is the production realization of the spec's "proxy
// future" over the HTTP + WebSocket transport in package ipc.
func DialProxyFactory(baseURL, serviceID string, newClient func() *ipc.Client) ProxyFactory {
	return func(ctx context.Context) (ipc.ProviderProxy, error) {
		client := newClient()
		backoff := 100 * time.Millisecond
		for {
			err := client.Connect(ctx)
			if err == nil {
				return client, nil
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to connect to %s at %s: %w", serviceID, baseURL, err)
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}
	}
}
