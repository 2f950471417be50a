package gamestream

import (
	"context"
	"strings"
	"sync"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/GriffinCanCode/Moonlit/backend/internal/shared/utils"
	"go.uber.org/zap"
)

// Resolver turns addresses into probed Hosts and caches them
type Resolver struct {
	client *Client
	logger *zap.Logger

	mu    sync.Mutex
	hosts map[string]*Host
}

// NewResolver creates a resolver
func NewResolver(client *Client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client: client,
		logger: logger,
		hosts:  make(map[string]*Host),
	}
}

// Resolve implements streaming.HostResolver. The host is probed with
// /serverinfo so an unreachable host fails here rather than mid-session.
func (r *Resolver) Resolve(ctx context.Context, address string) (streaming.Host, error) {
	return r.Lookup(ctx, address)
}

// Lookup is Resolve returning the concrete Host
func (r *Resolver) Lookup(ctx context.Context, address string) (*Host, error) {
	address = strings.TrimSpace(address)
	if err := utils.ValidateHostAddress(address); err != nil {
		return nil, err
	}

	r.mu.Lock()
	host, ok := r.hosts[address]
	if !ok {
		host = NewHost(r.client, address)
		r.hosts[address] = host
	}
	r.mu.Unlock()

	info, err := host.Refresh(ctx)
	if err != nil {
		r.logger.Warn("Host probe failed", zap.String("host", address), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("Host resolved",
		zap.String("host", address),
		zap.String("hostname", info.Hostname),
		zap.String("state", info.State))
	return host, nil
}
