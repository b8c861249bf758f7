package oai

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sethgrid/pester"

	"github.com/PascalRepond/rero-mef/internal/marc"
)

// DefaultMaxRetry bounds the retries of a single page fetch. Harvest
// windows are re-runnable, so failing fast beats hammering a source.
const DefaultMaxRetry = 3

// Client talks to OAI-PMH repositories with retrying HTTP requests.
type Client struct {
	http   *pester.Client
	logger *slog.Logger
}

// NewClient returns a client retrying up to maxRetry times with
// exponential backoff.
func NewClient(logger *slog.Logger, maxRetry int) *Client {
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	c := pester.New()
	c.MaxRetries = maxRetry
	c.Backoff = pester.ExponentialBackoff
	return &Client{http: c, logger: logger}
}

// do executes a single OAI request and decodes the envelope. Protocol
// errors come back as Error values.
func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	var response Response

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	if err != nil {
		return response, fmt.Errorf("build oai request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return response, fmt.Errorf("fetch %s: %w", req.URL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("fetch %s: unexpected status %d", req.URL(), resp.StatusCode)
	}
	if err := xml.NewDecoder(resp.Body).Decode(&response); err != nil {
		return response, fmt.Errorf("decode oai response: %w", err)
	}
	if response.Error.Code != "" {
		return response, Error{Code: response.Error.Code, Message: strings.TrimSpace(response.Error.Message)}
	}
	return response, nil
}

// Identify fetches the repository self description.
func (c *Client) Identify(ctx context.Context, endpoint string) (Response, error) {
	return c.do(ctx, Request{Endpoint: endpoint, Verb: "Identify"})
}

// GetRecord fetches a single record and returns its parsed MARC form,
// or nil when the repository does not know the identifier.
func (c *Client) GetRecord(ctx context.Context, endpoint, prefix, identifier string) (*marc.Record, error) {
	resp, err := c.do(ctx, Request{
		Endpoint:   endpoint,
		Verb:       "GetRecord",
		Prefix:     prefix,
		Identifier: identifier,
	})
	if err != nil {
		var oaiErr Error
		if errors.As(err, &oaiErr) && (oaiErr.Code == "idDoesNotExist" || oaiErr.Code == "noRecordsMatch") {
			return nil, nil
		}
		return nil, err
	}
	rec, err := marc.NewReader(strings.NewReader(resp.GetRecord.Raw)).Next()
	if err == io.EOF {
		return nil, nil
	}
	return rec, err
}

// RecordFunc handles one harvested MARC record.
type RecordFunc func(rec *marc.Record) error

// ListRecords walks the full result set of a ListRecords request,
// following resumption tokens, and calls fn for every MARC record.
// The noRecordsMatch condition yields no call and no error.
func (c *Client) ListRecords(ctx context.Context, req Request, fn RecordFunc) error {
	req.Verb = "ListRecords"
	for {
		resp, err := c.do(ctx, req)
		if err != nil {
			if IsNoRecords(err) {
				return nil
			}
			return err
		}
		c.logger.Debug("oai page fetched",
			slog.String("endpoint", req.Endpoint),
			slog.String("cursor", resp.ListRecords.Token.Cursor),
			slog.String("size", resp.ListRecords.Token.Size),
		)

		reader := marc.NewReader(strings.NewReader(resp.ListRecords.Raw))
		for {
			rec, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}

		if resp.ListRecords.Token.Value == "" {
			return nil
		}
		req.ResumptionToken = resp.ListRecords.Token.Value
	}
}

// ListRecordsRaw writes the inner ListRecords XML of every page to w.
// Used to mirror a source into a file without transformation.
func (c *Client) ListRecordsRaw(ctx context.Context, req Request, w io.Writer) error {
	req.Verb = "ListRecords"
	for {
		resp, err := c.do(ctx, req)
		if err != nil {
			if IsNoRecords(err) {
				return nil
			}
			return err
		}
		if _, err := io.WriteString(w, resp.ListRecords.Raw); err != nil {
			return err
		}
		if resp.ListRecords.Token.Value == "" {
			return nil
		}
		req.ResumptionToken = resp.ListRecords.Token.Value
	}
}
