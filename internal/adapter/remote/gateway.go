package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"adsync/internal/config/configs"
	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// Client talks to the remote ad platform's JSON/HTTP API. Transport-level
// failures are retried by retryablehttp; application-level failures surface
// as *port.RemoteError so callers can distinguish transient from permanent.
//
// The API has one quirk kept here: request bodies are form-encoded with a
// single field named after the resource, whose value is the object JSON.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	apiKey  string
}

// NewClient builds a gateway client from configuration. The retry policy
// covers connection failures and 5xx responses only; 4xx responses are
// returned to the caller immediately.
func NewClient(cfg configs.Remote, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.RequestTimeout
	rc.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// do sends one request. resource names the form field carrying the payload;
// it is empty for GET and DELETE. The response body is decoded into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, path, resource string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		form := url.Values{resource: {string(raw)}}
		body = strings.NewReader(form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Adzerk-ApiKey", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &port.RemoteError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &port.RemoteError{StatusCode: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &port.RemoteError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &port.RemoteError{StatusCode: resp.StatusCode, Body: "bad response: " + err.Error()}
	}
	return nil
}

func (c *Client) GetAdvertiser(ctx context.Context, id int64) (*domain.RemoteAdvertiser, error) {
	var adv domain.RemoteAdvertiser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/advertiser/%d", id), "", nil, &adv); err != nil {
		return nil, err
	}
	return &adv, nil
}

func (c *Client) CreateAdvertiser(ctx context.Context, adv *domain.RemoteAdvertiser) (*domain.RemoteAdvertiser, error) {
	var created domain.RemoteAdvertiser
	if err := c.do(ctx, http.MethodPost, "/advertiser", "advertiser", adv, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetCampaign(ctx context.Context, id int64) (*domain.RemoteCampaign, error) {
	var camp domain.RemoteCampaign
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/campaign/%d", id), "", nil, &camp); err != nil {
		return nil, err
	}
	return &camp, nil
}

func (c *Client) CreateCampaign(ctx context.Context, camp *domain.RemoteCampaign) (*domain.RemoteCampaign, error) {
	var created domain.RemoteCampaign
	if err := c.do(ctx, http.MethodPost, "/campaign", "campaign", camp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateCampaign(ctx context.Context, camp *domain.RemoteCampaign) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/campaign/%d", camp.ID), "campaign", camp, nil)
}

func (c *Client) GetCreative(ctx context.Context, id int64) (*domain.RemoteCreative, error) {
	var cr domain.RemoteCreative
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/creative/%d", id), "", nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

func (c *Client) CreateCreative(ctx context.Context, cr *domain.RemoteCreative) (*domain.RemoteCreative, error) {
	var created domain.RemoteCreative
	if err := c.do(ctx, http.MethodPost, "/creative", "creative", cr, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateCreative(ctx context.Context, cr *domain.RemoteCreative) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/creative/%d", cr.ID), "creative", cr, nil)
}

func (c *Client) GetFlight(ctx context.Context, id int64) (*domain.RemoteFlight, error) {
	var f domain.RemoteFlight
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/flight/%d", id), "", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) CreateFlight(ctx context.Context, f *domain.RemoteFlight) (*domain.RemoteFlight, error) {
	var created domain.RemoteFlight
	if err := c.do(ctx, http.MethodPost, "/flight", "flight", f, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateFlight(ctx context.Context, f *domain.RemoteFlight) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/flight/%d", f.ID), "flight", f, nil)
}

func (c *Client) GetCreativeFlightMap(ctx context.Context, flightID, id int64) (*domain.RemoteCreativeFlightMap, error) {
	var m domain.RemoteCreativeFlightMap
	path := fmt.Sprintf("/flight/%d/creative/%d", flightID, id)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) CreateCreativeFlightMap(ctx context.Context, flightID int64, m *domain.RemoteCreativeFlightMap) (*domain.RemoteCreativeFlightMap, error) {
	var created domain.RemoteCreativeFlightMap
	path := fmt.Sprintf("/flight/%d/creative", flightID)
	if err := c.do(ctx, http.MethodPost, path, "creative", m, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) CreateGeoTargeting(ctx context.Context, flightID int64, gt *domain.RemoteGeoTargeting) (*domain.RemoteGeoTargeting, error) {
	var created domain.RemoteGeoTargeting
	path := fmt.Sprintf("/flight/%d/geotargeting", flightID)
	if err := c.do(ctx, http.MethodPost, path, "geotargeting", gt, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteGeoTargeting(ctx context.Context, flightID, geoID int64) error {
	path := fmt.Sprintf("/flight/%d/geotargeting/%d/delete", flightID, geoID)
	return c.do(ctx, http.MethodGet, path, "", nil, nil)
}
