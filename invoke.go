package apijson

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const contentTypeJSON = "application/json"

// Response carries the status and headers of a completed exchange.
type Response struct {
	StatusCode int
	Header     http.Header
}

func (c *Client) codec() Serializer {
	if c.Codec != nil {
		return c.Codec
	}
	return Default()
}

// Invoke sends body, if non-nil, encoded with the client codec and decodes
// a non-empty 2xx response into out, if non-nil. A *string out receives the raw body
// when the response is not a JSON string. Non-2xx responses return *APIError.
func (c *Client) Invoke(ctx context.Context, method, path string, query url.Values, body, out any) (*Response, error) {
	endpoint := strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	c.logDebug("API request",
		"method", method,
		"url", endpoint,
		"has_body", body != nil,
	)

	var reader io.Reader
	if body != nil {
		payload, err := c.codec().Serialize(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp.Body)

	result := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(resp.Body)
		c.logInfo("API error response",
			"method", method,
			"url", endpoint,
			"status_code", resp.StatusCode,
		)
		return result, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       payload,
			codec:      c.codec(),
		}
	}

	if out != nil {
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return result, err
		}
		// an empty body leaves out untouched
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := c.codec().Deserialize(string(payload), out); err != nil {
				return result, err
			}
		}
	}

	c.logDebug("API response",
		"method", method,
		"url", endpoint,
		"status_code", resp.StatusCode,
	)

	return result, nil
}
