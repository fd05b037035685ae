package circare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultUserAgent = "circare-go"
	maxResponseBytes = 32 << 20
)

// Client talks to the Arch-Circare search API.
type Client struct {
	base      *url.URL
	token     string
	userAgent string

	// once sends each request a single time; retrying backs off on GETs.
	once     *http.Client
	retrying *http.Client

	limiter  *rate.Limiter
	validate *validator.Validate
	obs      *observer
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("circare: invalid base url %q", baseURL)
	}

	cfg := &clientConfig{
		timeout:   defaultTimeout,
		retries:   defaultRetries,
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	once := cfg.httpClient
	if once == nil {
		once = &http.Client{Timeout: cfg.timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = once
	rc.RetryMax = cfg.retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = ignoreClientErrorRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.logger != nil {
		rc.Logger = cfg.logger
	} else {
		rc.Logger = nil
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:      base,
		token:     cfg.token,
		userAgent: cfg.userAgent,
		once:      once,
		retrying:  rc.StandardClient(),
		validate:  validator.New(),
		obs:       obs,
	}
	if cfg.rateLimit > 0 {
		burst := cfg.burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(cfg.rateLimit, burst)
	}
	return c, nil
}

// ignoreClientErrorRetryPolicy retries network failures and 5xx/429 but never
// other 4xx responses or a cancelled context.
func ignoreClientErrorRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// SearchFile uploads a reference image to endpoint, which must be one of
// EndpointSearchFile, EndpointQueryImage or EndpointExplore.
func (c *Client) SearchFile(ctx context.Context, endpoint string, f File, p SearchParams) (res *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_file", start, err) }()

	switch endpoint {
	case EndpointSearchFile, EndpointQueryImage, EndpointExplore:
	default:
		return nil, fmt.Errorf("%w: unknown upload endpoint %q", ErrInvalidRequest, endpoint)
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidRequest)
	}

	body, contentType, err := multipartBody(f)
	if err != nil {
		return nil, err
	}
	res = &SearchResponse{}
	if err = c.do(ctx, http.MethodPost, endpoint, p.query(), body, contentType, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SearchURL searches by a publicly reachable image URL.
func (c *Client) SearchURL(ctx context.Context, imageURL string, p SearchParams) (res *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_url", start, err) }()

	if imageURL == "" {
		return nil, fmt.Errorf("%w: image url is required", ErrInvalidRequest)
	}
	q := p.query()
	q.Set("url", imageURL)
	res = &SearchResponse{}
	if err = c.do(ctx, http.MethodGet, endpointSearchURL, q, nil, "", res); err != nil {
		return nil, err
	}
	return res, nil
}

// SearchByID searches by an image already in the index. The endpoint does
// not rerank; p.Rerank and p.SessionID are ignored.
func (c *Client) SearchByID(ctx context.Context, imageID string, p SearchParams) (res *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_id", start, err) }()

	if imageID == "" {
		return nil, fmt.Errorf("%w: image id is required", ErrInvalidRequest)
	}
	b := searchByIDBody{
		ImageID:      imageID,
		TopK:         p.TopK,
		Weights:      p.Weights,
		Filters:      p.Filters,
		Strict:       p.Strict,
		LensIDs:      p.LensIDs,
		LensProjects: p.LensProjects,
	}
	if p.PlanMode {
		b.Mode = "plan"
	}
	body, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("circare: marshal request: %w", err)
	}
	res = &SearchResponse{}
	if err = c.do(ctx, http.MethodPost, endpointSearchID, nil, body, "application/json", res); err != nil {
		return nil, err
	}
	return res, nil
}

// ProjectImages lists the images of a project.
func (c *Client) ProjectImages(ctx context.Context, projectID string) (res *ProjectImages, err error) {
	start := time.Now()
	defer func() { c.obs.observe("project_images", start, err) }()

	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	res = &ProjectImages{}
	p := fmt.Sprintf(endpointProjectsFmt, url.PathEscape(projectID))
	if err = c.do(ctx, http.MethodGet, p, nil, nil, "", res); err != nil {
		return nil, err
	}
	return res, nil
}

// Feedback submits a batch of votes. It is never retried.
func (c *Client) Feedback(ctx context.Context, req FeedbackRequest) (res *FeedbackResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("feedback", start, err) }()

	if req.SessionID == "" || req.QueryID == "" {
		return nil, fmt.Errorf("%w: session_id and query_id are required", ErrInvalidRequest)
	}
	if req.Liked == nil {
		req.Liked = []string{}
	}
	if req.Disliked == nil {
		req.Disliked = []string{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("circare: marshal feedback: %w", err)
	}
	res = &FeedbackResponse{}
	if err = c.do(ctx, http.MethodPost, endpointFeedback, nil, body, "application/json", res); err != nil {
		return nil, err
	}
	return res, nil
}

// LatentPoints returns the 2-D projection of the whole corpus. Rows are
// returned as sent; callers validate coordinates.
func (c *Client) LatentPoints(ctx context.Context) (pts []LatentPoint, err error) {
	start := time.Now()
	defer func() { c.obs.observe("latent_points", start, err) }()

	var res latentPointsResponse
	if err = c.do(ctx, http.MethodGet, endpointLatent, nil, nil, "", &res); err != nil {
		return nil, err
	}
	if res.Results == nil {
		res.Results = []LatentPoint{}
	}
	return res.Results, nil
}

func multipartBody(f File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := path.Base(f.Name)
	if name == "." || name == "/" {
		name = "upload"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("circare: build upload: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("circare: build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("circare: build upload: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// do sends one request to the escaped path p and decodes a validated JSON
// response into out.
func (c *Client) do(
	ctx context.Context, method, p string, q url.Values, body []byte, contentType string, out any,
) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("circare: rate limiter: %w", err)
		}
	}

	// p is an escaped path; Path carries its decoded form and RawPath keeps
	// escaped segments such as %2F intact.
	rawPath, err := url.PathUnescape(p)
	if err != nil {
		return fmt.Errorf("circare: build request: %w", err)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + rawPath
	u.RawPath = strings.TrimRight(c.base.EscapedPath(), "/") + p
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("circare: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	hc := c.once
	if method == http.MethodGet {
		hc = c.retrying
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("circare: %s %s: %w", method, p, ctxErr)
		}
		return fmt.Errorf("circare: %s %s: %w: %w", method, p, ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("circare: read response: %w: %w", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrInvalidResponse, p, err)
	}
	if err := c.validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, p, err)
	}
	return nil
}
