package gamestream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/domain/streaming"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/tracing"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// DefaultPort is the GameStream HTTP control port
const DefaultPort = 47989

// Options configures a Client
type Options struct {
	Port      int
	Timeout   time.Duration
	Retries   int
	RPS       float64
	TripAfter uint32
	UniqueID  string
}

// DefaultOptions returns options suitable for a LAN host
func DefaultOptions() Options {
	return Options{
		Port:      DefaultPort,
		Timeout:   10 * time.Second,
		Retries:   2,
		RPS:       10,
		TripAfter: 3,
	}
}

// Client issues control requests to GameStream hosts
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *monitoring.Metrics
	opts    Options

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewClient creates a client. A blank UniqueID gets a random one; hosts use
// it to recognise the client across requests.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.UniqueID == "" {
		opts.UniqueID = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(250*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("User-Agent", "Moonlit/1.0").
		AddRetryCondition(retryIdempotent)
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limit := rate.Inf
	burst := 0
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		burst = int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		resty:    restyClient,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.Named("gamestream"),
		opts:     opts,
		breakers: make(map[string]*resilience.Breaker),
	}
}

// WithMetrics adds host call metrics
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// UniqueID returns the identifier sent to hosts
func (c *Client) UniqueID() string {
	return c.opts.UniqueID
}

// BreakerState reports the circuit state for address
func (c *Client) BreakerState(address string) resilience.State {
	return c.breakerFor(address).State()
}

// ServerInfo queries the host's identity and current state
func (c *Client) ServerInfo(ctx context.Context, address string) (*ServerInfo, error) {
	root, err := c.call(ctx, address, "serverinfo", nil)
	if err != nil {
		return nil, err
	}
	return parseServerInfo(root), nil
}

// AppList returns the applications the host can launch
func (c *Client) AppList(ctx context.Context, address string) ([]streaming.App, error) {
	root, err := c.call(ctx, address, "applist", nil)
	if err != nil {
		return nil, err
	}
	return parseAppList(root), nil
}

// retryIdempotent limits resty's retries to transport errors on queries;
// launch, resume and cancel are never repeated.
func retryIdempotent(resp *resty.Response, err error) bool {
	if err == nil || resp == nil || resp.Request == nil {
		return false
	}
	url := resp.Request.URL
	return strings.HasSuffix(url, "/serverinfo") || strings.HasSuffix(url, "/applist")
}

func (c *Client) baseURL(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return "http://" + address
	}
	return "http://" + net.JoinHostPort(address, strconv.Itoa(c.opts.Port))
}

func (c *Client) breakerFor(address string) *resilience.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[address]; ok {
		return b
	}
	log := c.logger
	b := resilience.New("host:"+address, resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= c.opts.TripAfter
		},
		IsSuccessful: func(err error) bool {
			var herr *streaming.HostError
			return err == nil || errors.As(err, &herr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Host circuit changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	c.breakers[address] = b
	return b
}

// call issues one control request and returns the checked response root
func (c *Client) call(ctx context.Context, address, method string, query map[string]string) (*html.Node, error) {
	timer := monitoring.NewTimer(c.metrics, method)

	if err := c.limiter.Wait(ctx); err != nil {
		timer.Stop("rate_limited")
		return nil, fmt.Errorf("%s %s: rate limit: %w", method, address, err)
	}

	params := map[string]string{
		"uniqueid": c.opts.UniqueID,
		"uuid":     uuid.NewString(),
	}
	for k, v := range query {
		params[k] = v
	}
	headers := make(map[string]string, 2)
	tracing.InjectTraceContext(ctx, headers)

	var root *html.Node
	err := c.breakerFor(address).Do(func() error {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParams(params).
			Get(c.baseURL(address) + "/" + method)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, address, err)
		}
		if resp.IsError() {
			return &streaming.HostError{
				Code:    streaming.CodeError,
				Message: fmt.Sprintf("%s returned HTTP %d", method, resp.StatusCode()),
			}
		}
		root, err = parseResponse(resp.Body())
		return err
	})

	var herr *streaming.HostError
	switch {
	case err == nil:
		timer.Stop("ok")
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		timer.Stop("circuit_open")
		return nil, fmt.Errorf("%s %s: %w", method, address, err)
	case errors.As(err, &herr):
		timer.Stop("host_error")
		c.logger.Warn("Host refused request",
			zap.String("host", address),
			zap.String("method", method),
			zap.String("message", herr.Message))
		return nil, err
	default:
		timer.Stop("error")
		return nil, err
	}
	return root, nil
}
