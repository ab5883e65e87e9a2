package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source fetches the currently available bridges.
type Source interface {
	Fetch(ctx context.Context) ([]Configuration, error)
}

// HTTPSource fetches the relay list from the API and extracts the bridge
// relays that accept Shadowsocks over TCP.
type HTTPSource struct {
	URL      string
	Client   *http.Client
	MaxBytes int64
}

// Default limits for HTTPSource.
const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxBytes     = 8 << 20
)

// NewHTTPSource creates a source with a bounded client timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:      url,
		Client:   &http.Client{Timeout: DefaultFetchTimeout},
		MaxBytes: DefaultMaxBytes,
	}
}

type relayList struct {
	Bridge struct {
		Shadowsocks []shadowsocksEndpoint `json:"shadowsocks"`
		Relays      []bridgeRelay         `json:"relays"`
	} `json:"bridge"`
}

type shadowsocksEndpoint struct {
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
	Cipher   string `json:"cipher"`
	Password string `json:"password"`
}

type bridgeRelay struct {
	Hostname   string `json:"hostname"`
	IPv4AddrIn string `json:"ipv4_addr_in"`
	Active     bool   `json:"active"`
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Configuration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relay list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch relay list: unexpected status %s", resp.Status)
	}

	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read relay list: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("relay list exceeds %d bytes", maxBytes)
	}

	var list relayList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode relay list: %w", err)
	}
	return list.candidates(), nil
}

func (l relayList) candidates() []Configuration {
	var out []Configuration
	for _, r := range l.Bridge.Relays {
		if !r.Active || r.IPv4AddrIn == "" {
			continue
		}
		for _, ep := range l.Bridge.Shadowsocks {
			if ep.Protocol != "" && ep.Protocol != "tcp" {
				continue
			}
			out = append(out, Configuration{
				Address:  r.IPv4AddrIn,
				Port:     ep.Port,
				Password: ep.Password,
				Cipher:   ep.Cipher,
			})
		}
	}
	return out
}

// StaticSource serves bridges parsed from ss:// URIs.
type StaticSource struct {
	configs []Configuration
}

// NewStaticSource parses every URI up front.
func NewStaticSource(uris []string) (*StaticSource, error) {
	configs := make([]Configuration, 0, len(uris))
	for _, u := range uris {
		c, err := ParseURI(u)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return &StaticSource{configs: configs}, nil
}

// Fetch implements Source.
func (s *StaticSource) Fetch(context.Context) ([]Configuration, error) {
	out := make([]Configuration, len(s.configs))
	copy(out, s.configs)
	return out, nil
}

// ChainSource asks each source in order and returns the first non-empty
// result. Errors are only reported when no source produced a bridge.
type ChainSource []Source

// Fetch implements Source.
func (c ChainSource) Fetch(ctx context.Context) ([]Configuration, error) {
	var errs []error
	for _, s := range c {
		configs, err := s.Fetch(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(configs) > 0 {
			return configs, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
