// Package stats talks to the easyquery AJAX API behind the NBS data portal.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

const (
	apiPath  = "/easyquery.htm"
	bootPath = "/english/easyquery.htm"

	opTree  = "getTree"
	opQuery = "QueryData"

	// The portal rejects requests that don't look like its own frontend.
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
)

// Options configures a Client.
type Options struct {
	// Endpoints are candidate base URLs tried in order, e.g.
	// "https://data.stats.gov.cn". Must not be empty.
	Endpoints []string

	// UserAgent overrides the default browser user agent.
	UserAgent string

	// BootTimeout bounds the session bootstrap GET.
	BootTimeout time.Duration

	// QueryTimeout bounds each tree or data POST.
	QueryTimeout time.Duration
}

// Client is an easyquery API client. One client holds one cookie jar; the
// session cookie acquired by BootSession rides it on every later POST.
type Client struct {
	http         *resty.Client
	endpoints    []string
	bootTimeout  time.Duration
	queryTimeout time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewClient creates a Client. The clock feeds the k1 cache-busting token on
// data queries; pass a fake in tests.
func NewClient(opts Options, clock clockwork.Clock, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	httpClient := resty.NewWithClient(&http.Client{Jar: jar})

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	httpClient.SetHeader("User-Agent", ua)

	return &Client{
		http:         httpClient,
		endpoints:    opts.Endpoints,
		bootTimeout:  opts.BootTimeout,
		queryTimeout: opts.QueryTimeout,
		clock:        clock,
		logger:       logger,
	}
}

// BootSession issues the unauthenticated query-page GET that seeds the
// session cookie for a locale. Every endpoint is booted so that whichever
// base later answers a POST already has its cookie in the jar; at least one
// must succeed.
func (c *Client) BootSession(ctx context.Context, cn string) error {
	ctx, cancel := context.WithTimeout(ctx, c.bootTimeout)
	defer cancel()

	var errs []error
	booted := 0
	for _, base := range c.endpoints {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("cn", cn).
			Get(base + bootPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", base, err))
			continue
		}
		if !resp.IsSuccess() {
			errs = append(errs, fmt.Errorf("%s: status %d", base, resp.StatusCode()))
			continue
		}
		booted++
	}
	if booted == 0 {
		return fmt.Errorf("session bootstrap cn=%s: %w", cn, errors.Join(errs...))
	}
	return nil
}

// FetchTree retrieves a catalog tree: wdcode "zb" for indicators, "reg" for
// regions. An empty tree is domain.ErrEmpty so callers can fall through to
// the next candidate combination.
func (c *Client) FetchTree(ctx context.Context, dbcode, wdcode, cn string) ([]domain.TreeNode, error) {
	form := map[string]string{
		"m":      opTree,
		"dbcode": dbcode,
		"id":     "zb",
		"wdcode": wdcode,
		"cn":     cn,
	}
	body, err := c.postForm(ctx, cn, form)
	if err != nil {
		return nil, fmt.Errorf("getTree dbcode=%s wdcode=%s: %w", dbcode, wdcode, err)
	}

	nodes, err := domain.DecodeTree(body)
	if err != nil {
		return nil, fmt.Errorf("getTree dbcode=%s wdcode=%s: %w; body begins: %s",
			dbcode, wdcode, err, preview(body))
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("getTree dbcode=%s wdcode=%s: %w", dbcode, wdcode, domain.ErrEmpty)
	}
	return nodes, nil
}

// dimensionFilter is one entry of the dfwds query parameter.
type dimensionFilter struct {
	WDCode    string `json:"wdcode"`
	ValueCode string `json:"valuecode"`
}

// FetchSeries downloads one indicator's observations with regions on the row
// axis and years on the column axis. Nodes with undecodable wds strings are
// dropped and counted; zero decoded rows is domain.ErrEmpty.
func (c *Client) FetchSeries(ctx context.Context, dbcode, zbCode, cn string) (domain.QueryResult, error) {
	filter, err := json.Marshal([]dimensionFilter{{WDCode: "zb", ValueCode: zbCode}})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("encode dfwds: %w", err)
	}

	form := map[string]string{
		"m":       opQuery,
		"dbcode":  dbcode,
		"rowcode": "reg",
		"colcode": "sj",
		"dfwds":   string(filter),
		// Millisecond timestamp the frontend sends to defeat intermediary caches.
		"k1": strconv.FormatInt(c.clock.Now().UnixMilli(), 10),
		"cn": cn,
	}
	body, err := c.postForm(ctx, cn, form)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("QueryData zb=%s: %w", zbCode, err)
	}

	payload, err := domain.DecodeQuery(body)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("QueryData zb=%s: %w; body begins: %s",
			zbCode, err, preview(body))
	}

	observations, dropped := domain.DecodeDataNodes(payload.DataNodes)
	if dropped > 0 {
		c.logger.Warn("dropped undecodable data nodes", "zb", zbCode, "dropped", dropped)
	}
	if len(observations) == 0 {
		return domain.QueryResult{}, fmt.Errorf("QueryData zb=%s: %w", zbCode, domain.ErrEmpty)
	}

	names, err := domain.RegionNames(payload.WDNodes)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("QueryData zb=%s: %w", zbCode, err)
	}

	return domain.QueryResult{
		Observations: observations,
		Dropped:      dropped,
		RegionNames:  names,
	}, nil
}

// postForm sends the form to each candidate endpoint in order. A 404 means
// the base doesn't serve the API path; any other failure also exhausts the
// base. The joined error keeps the per-base causes when all are exhausted.
func (c *Client) postForm(ctx context.Context, cn string, form map[string]string) ([]byte, error) {
	var errs []error
	for _, base := range c.endpoints {
		body, err := c.postFormTo(ctx, base, cn, form)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errNotFound) {
			c.logger.Debug("endpoint does not serve the API path", "base", base)
		} else {
			c.logger.Warn("endpoint failed", "base", base, "error", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", base, err))
	}
	return nil, fmt.Errorf("all endpoints exhausted: %w", errors.Join(errs...))
}

var errNotFound = errors.New("endpoint returned 404")

func (c *Client) postFormTo(ctx context.Context, base, cn string, form map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", base+bootPath+"?cn="+cn).
		SetHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetFormData(form).
		Post(base + apiPath)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errNotFound
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode(), preview(resp.Body()))
	}
	return resp.Body(), nil
}

// preview truncates a response body for error messages.
func preview(body []byte) string {
	const max = 300
	s := strings.ReplaceAll(string(body), "\r", "")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
