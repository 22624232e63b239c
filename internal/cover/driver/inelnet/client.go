package inelnet

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/sirupsen/logrus"

	"github.com/jkaflik/inelnet2mqtt/internal/metrics"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultRetries    = 2
	DefaultRetryDelay = 800 * time.Millisecond
)

type ClientConfig struct {
	Host       string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Client talks to an InelNET blind controller. The controller is a dumb
// actuator: the only acknowledgement is the HTTP status, there is no
// position feedback on the wire. Transport failures never escape as
// errors, they are retried and collapsed into a boolean result.
type Client struct {
	host       string
	baseURL    string
	hc         *http.Client
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Client{
		host:       cfg.Host,
		baseURL:    "http://" + cfg.Host,
		hc:         &http.Client{},
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
}

func (c *Client) Host() string {
	return c.host
}

// TestConnection probes the controller's index page. It is a non-fatal
// reachability check: any transport error or non-200 status yields false.
func (c *Client) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := requests.URL(c.baseURL).
		Client(c.hc).
		CheckStatus(http.StatusOK).
		Fetch(ctx)
	if err != nil {
		logrus.Debugf("inelnet %s: connection test failed: %s", c.host, err)
		return false
	}

	return true
}

// SendCommand delivers an action code to a channel, retrying on failure.
// Only an HTTP 200 counts as delivered. There is no delay after the last
// attempt. The caller must update any position state only on true.
func (c *Client) SendCommand(ctx context.Context, channel int, action Action) bool {
	for attempt := 1; attempt <= c.retries; attempt++ {
		err := c.post(ctx, channel, action)
		if err == nil {
			logrus.Debugf("inelnet %s: command %s sent to channel %d", c.host, action, channel)
			metrics.CommandsTotal.WithLabelValues(action.String(), "ok").Inc()
			return true
		}

		logrus.Warnf("inelnet %s: command %s for channel %d failed (attempt %d/%d): %s",
			c.host, action, channel, attempt, c.retries, err)

		if attempt < c.retries {
			metrics.CommandRetriesTotal.Inc()
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				metrics.CommandsTotal.WithLabelValues(action.String(), "failed").Inc()
				return false
			}
		}
	}

	metrics.CommandsTotal.WithLabelValues(action.String(), "failed").Inc()
	return false
}

func (c *Client) post(ctx context.Context, channel int, action Action) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return requests.URL(c.baseURL + "/msg.htm").
		Client(c.hc).
		BodyForm(url.Values{
			"send_ch":  {strconv.Itoa(channel)},
			"send_act": {strconv.Itoa(int(action))},
		}).
		CheckStatus(http.StatusOK).
		Fetch(ctx)
}

// SendRaw validates and delivers a raw action code coming from the
// maintenance passthrough. Unknown codes and ActionProgram are refused.
func (c *Client) SendRaw(ctx context.Context, channel int, code int) bool {
	action, ok := ActionFromCode(code)
	if !ok {
		logrus.Warnf("inelnet %s: refusing raw action code %d for channel %d", c.host, code, channel)
		return false
	}

	return c.SendCommand(ctx, channel, action)
}

func (c *Client) OpenCover(ctx context.Context, channel int) bool {
	return c.SendCommand(ctx, channel, ActionUp)
}

func (c *Client) CloseCover(ctx context.Context, channel int) bool {
	return c.SendCommand(ctx, channel, ActionDown)
}

func (c *Client) StopCover(ctx context.Context, channel int) bool {
	return c.SendCommand(ctx, channel, ActionStop)
}

func (c *Client) OpenCoverShort(ctx context.Context, channel int) bool {
	return c.SendCommand(ctx, channel, ActionUpShort)
}

func (c *Client) CloseCoverShort(ctx context.Context, channel int) bool {
	return c.SendCommand(ctx, channel, ActionDownShort)
}
