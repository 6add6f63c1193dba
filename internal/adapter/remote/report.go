package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"adsync/internal/core/port"
)

// Report queue status codes on the wire.
const (
	reportStatusPending  = 1
	reportStatusComplete = 2
	reportStatusError    = 3
)

// reportDateFormat is the month/day/year layout the report criteria
// endpoint expects, unlike the wrapped epoch dates used by the object API.
const reportDateFormat = "01/02/2006"

// QueueReport requests generation of a usage report and returns the opaque
// report id to poll with.
func (c *Client) QueueReport(ctx context.Context, criteria port.ReportCriteria) (string, error) {
	body := map[string]any{
		"StartDate":  criteria.Start.UTC().Format(reportDateFormat),
		"EndDate":    criteria.End.UTC().Format(reportDateFormat),
		"GroupBy":    criteria.GroupBy,
		"Parameters": criteria.Parameters,
	}
	var resp struct {
		ID string `json:"Id"`
	}
	if err := c.do(ctx, http.MethodPost, "/report/queue", "criteria", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &port.RemoteError{StatusCode: 200, Body: "report queue response missing id"}
	}
	return resp.ID, nil
}

// FetchReport polls a queued report. The outcome is an explicit result:
// ready with the report payload, pending, or errored with the platform's
// reason. Transport and HTTP failures are returned as errors, not results.
func (c *Client) FetchReport(ctx context.Context, reportID string) (port.ReportResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/report/queue/"+reportID, "", nil, &raw); err != nil {
		return port.ReportResult{}, err
	}

	body := string(raw)
	status := gjson.Get(body, "Status").Int()
	switch status {
	case reportStatusComplete:
		return port.ReportResult{State: port.ReportReady, Payload: gjson.Get(body, "Result").Raw}, nil
	case reportStatusPending:
		return port.ReportResult{State: port.ReportPending}, nil
	case reportStatusError:
		return port.ReportResult{State: port.ReportErrored, Reason: gjson.Get(body, "Message").String()}, nil
	default:
		return port.ReportResult{}, &port.RemoteError{
			StatusCode: 200,
			Body:       fmt.Sprintf("unknown report status %d", status),
		}
	}
}
