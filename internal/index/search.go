package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// Search wraps the Elasticsearch client for record indexing. One
// index per entity, documents keyed by pid.
type Search struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

// NewSearch connects to an Elasticsearch cluster.
func NewSearch(addresses []string, logger *slog.Logger) (*Search, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Search{
		es:     es,
		logger: logger.With("component", "index.search"),
	}, nil
}

// Ping checks cluster reachability.
func (s *Search) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// BulkIndex writes records into the entity's index.
func (s *Search) BulkIndex(ctx context.Context, e model.Entity, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	var body bytes.Buffer
	for _, rec := range recs {
		pid := rec.Pid()
		if pid == "" {
			return fmt.Errorf("index %s record without pid", e)
		}
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, e.IndexName(), pid)
		body.WriteString(meta)
		body.WriteByte('\n')
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", e, pid, err)
		}
		body.Write(doc)
		body.WriteByte('\n')
	}
	return s.bulk(ctx, &body)
}

// BulkDelete removes documents from the entity's index. Documents
// already absent are not an error.
func (s *Search) BulkDelete(ctx context.Context, e model.Entity, pids []string) error {
	if len(pids) == 0 {
		return nil
	}
	var body bytes.Buffer
	for _, pid := range pids {
		meta := fmt.Sprintf(`{"delete":{"_index":%q,"_id":%q}}`, e.IndexName(), pid)
		body.WriteString(meta)
		body.WriteByte('\n')
	}
	return s.bulk(ctx, &body)
}

// Refresh makes recent writes visible to search. Tests only.
func (s *Search) Refresh(ctx context.Context, e model.Entity) error {
	res, err := s.es.Indices.Refresh(
		s.es.Indices.Refresh.WithContext(ctx),
		s.es.Indices.Refresh.WithIndex(e.IndexName()),
	)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", e, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("refresh %s: %s", e, res.Status())
	}
	return nil
}

// bulkResponse is the subset of the bulk API response we act on.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (s *Search) bulk(ctx context.Context, body io.Reader) error {
	res, err := s.es.Bulk(body, s.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk request: %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	for _, item := range parsed.Items {
		for op, detail := range item {
			// A delete hitting a missing document reports 404.
			if detail.Error == nil || (op == "delete" && detail.Status == 404) {
				continue
			}
			return fmt.Errorf("bulk %s %s: %s: %s",
				op, detail.ID, detail.Error.Type, detail.Error.Reason)
		}
	}
	return nil
}
