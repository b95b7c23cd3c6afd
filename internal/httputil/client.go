package httputil

import (
	"net/http"
	"time"
)

// HTTPClient is the part of *http.Client the API client uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds a whole remote call, upload included.
const DefaultTimeout = 60 * time.Second

type agentClient struct {
	next  HTTPClient
	agent string
}

func (c agentClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.agent)
	}
	return c.next.Do(req)
}

// NewClient wraps c so its requests carry agent as User-Agent. A nil c is
// replaced by a client with DefaultTimeout.
func NewClient(c *http.Client, agent string) HTTPClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return agentClient{next: c, agent: agent}
}
