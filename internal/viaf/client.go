package viaf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sethgrid/pester"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// Client fetches VIAF clusters over the justlinks API.
type Client struct {
	baseURL string
	http    *pester.Client
	logger  *slog.Logger
}

// NewClient returns a client for the given VIAF endpoint. An empty
// baseURL selects the public service.
func NewClient(logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := pester.New()
	c.MaxRetries = 3
	c.Backoff = pester.ExponentialBackoff
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    c,
		logger:  logger,
	}
}

// justLinks is the wire form of a justlinks.json document: the cluster
// pid plus a list of member pids per source code.
type justLinks struct {
	ViafID string `json:"viafID"`
	Links  map[string][]string
}

func (j *justLinks) UnmarshalJSON(raw []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return err
	}
	j.Links = map[string][]string{}
	for key, val := range all {
		if key == "viafID" {
			if err := json.Unmarshal(val, &j.ViafID); err != nil {
				return err
			}
			continue
		}
		var pids []string
		// Non list members (XLinks etc.) are not cluster data.
		if err := json.Unmarshal(val, &pids); err == nil {
			j.Links[key] = pids
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build viaf request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	var links justLinks
	if err := json.NewDecoder(resp.Body).Decode(&links); err != nil {
		return nil, fmt.Errorf("decode viaf response: %w", err)
	}
	if links.ViafID == "" {
		return nil, nil
	}

	cl := newCluster(links.ViafID)
	for code, pids := range links.Links {
		for _, pid := range pids {
			cl.add(code, pid)
		}
	}
	rec := cl.Record()
	if rec == nil {
		// A cluster with no known member still identifies the entity.
		rec = model.Record{"pid": links.ViafID}
	}
	return rec, nil
}

// GetByPid fetches the cluster with the given VIAF pid. Nil without
// error when VIAF does not know the pid.
func (c *Client) GetByPid(ctx context.Context, viafPid string) (model.Record, error) {
	return c.get(ctx, fmt.Sprintf("%s/viaf/%s/justlinks.json", c.baseURL, viafPid))
}

// GetByAgent fetches the cluster containing a source record, looked up
// as sourceID "CODE|pid". Nil without error when no cluster holds the
// pid, or when the cluster VIAF returns does not list it anymore.
func (c *Client) GetByAgent(ctx context.Context, e model.Entity, pid string) (model.Record, error) {
	code := model.ViafCodeFor(e)
	if code == "" {
		return nil, fmt.Errorf("no viaf source code for entity %q", e)
	}
	rec, err := c.get(ctx, fmt.Sprintf("%s/viaf/sourceID/%s%%7C%s/justlinks.json", c.baseURL, code, pid))
	if err != nil || rec == nil {
		return nil, err
	}
	// VIAF sourceID lookups can answer with a stale cluster.
	if AgentPid(rec, e) != pid {
		c.logger.Debug("viaf cluster does not confirm agent",
			slog.String("entity", string(e)),
			slog.String("pid", pid),
			slog.String("viaf_pid", rec.Pid()),
		)
		return nil, nil
	}
	return rec, nil
}
