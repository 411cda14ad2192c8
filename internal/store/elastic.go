// =============================================================================
// SIRENE Loader - Elasticsearch Store
// =============================================================================
//
// Elastic implements Store with one esapi request per operation. The client
// retries 429/502/503/504 responses with an exponential backoff.
//
// =============================================================================

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/splashes/splashes/internal/company"
)

// =============================================================================
// CLIENT
// =============================================================================

// ClientConfig configures the Elasticsearch client.
type ClientConfig struct {
	// URL is the cluster endpoint, e.g. http://localhost:9200.
	URL string

	// MaxRetries bounds the retries of a single request.
	MaxRetries int

	// Transport overrides the HTTP transport. Tests point it at a fake cluster.
	Transport http.RoundTripper
}

// NewClient creates an Elasticsearch client with retry and backoff.
func NewClient(cfg ClientConfig) (*elasticsearch.Client, error) {
	var mu sync.Mutex
	retryBackoff := backoff.NewExponentialBackOff()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Transport: cfg.Transport,

		// Retry on 429 TooManyRequests and gateway errors.
		RetryOnStatus: []int{502, 503, 504, 429},

		// The backoff is shared by concurrent workers.
		RetryBackoff: func(i int) time.Duration {
			mu.Lock()
			defer mu.Unlock()
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}
	return client, nil
}

// =============================================================================
// INDEX MAPPING
// =============================================================================

// indexMapping is applied when the index is created. Coded values are
// keywords, free text uses the built-in french analyzer and the raw CSV
// payload is stored but not indexed.
const indexMapping = `{
  "mappings": {
    "properties": {
      "siret":             {"type": "keyword"},
      "siren":             {"type": "keyword"},
      "nic":               {"type": "keyword"},
      "name":              {"type": "text", "analyzer": "french", "fields": {"raw": {"type": "keyword"}}},
      "sign":              {"type": "text", "analyzer": "french"},
      "category":          {"type": "keyword"},
      "legal_form":        {"type": "keyword"},
      "legal_form_label":  {"type": "text"},
      "ape":               {"type": "keyword"},
      "ape_label":         {"type": "text", "analyzer": "french"},
      "region":            {"type": "keyword"},
      "departement":       {"type": "keyword"},
      "commune":           {"type": "keyword"},
      "city":              {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "postal_code":       {"type": "keyword"},
      "epci":              {"type": "keyword"},
      "workforce_bracket": {"type": "keyword"},
      "seasonality":       {"type": "keyword"},
      "shop_type":         {"type": "keyword"},
      "rna":               {"type": "keyword"},
      "headquarters":      {"type": "keyword"},
      "activity_start":    {"type": "date", "format": "yyyy-MM-dd"},
      "last_insee_update": {"type": "date", "format": "yyyy-MM-dd"},
      "creation_month":    {"type": "date", "format": "yyyy-MM-dd"},
      "workforce_date":    {"type": "date", "format": "yyyy-MM-dd"},
      "workforce":         {"type": "integer"},
      "seasonal":          {"type": "boolean"},
      "location":          {"type": "geo_point"},
      "last_update":       {"type": "date"},
      "csv":               {"type": "object", "enabled": false}
    }
  }
}`

// =============================================================================
// ELASTIC STORE
// =============================================================================

// Elastic is a Store backed by an Elasticsearch index.
type Elastic struct {
	client *elasticsearch.Client
	index  string
	log    *slog.Logger
}

// NewElastic creates a store writing to index.
func NewElastic(client *elasticsearch.Client, index string, logger *slog.Logger) *Elastic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Elastic{
		client: client,
		index:  index,
		log:    logger.With("index", index),
	}
}

// Index returns the index name.
func (e *Elastic) Index() string {
	return e.index
}

// EnsureIndex creates the index with the company mapping when it does not
// exist yet. An existing index is left as is.
//
// RETURNS:
//   - true if the index was created by this call.
//   - An error if the cluster cannot be reached or refuses the mapping.
func (e *Elastic) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return false, fmt.Errorf("checking index %s: %w", e.index, err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("checking index %s: unexpected status %d", e.index, res.StatusCode)
	}

	res, err = esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, e.client)
	if err != nil {
		return false, fmt.Errorf("creating index %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		rerr := responseError(res)
		// Another process created it in between.
		if strings.Contains(rerr.Error(), "resource_already_exists_exception") {
			return false, nil
		}
		return false, fmt.Errorf("creating index %s: %w", e.index, rerr)
	}

	e.log.Info("index created")
	return true, nil
}

// Upsert indexes rec under id, replacing any previous version.
func (e *Elastic) Upsert(ctx context.Context, id string, rec *company.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode company %s: %w", id, err)
	}

	res, err := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: id,
		Body:       bytes.NewReader(data),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing %s: %w", id, responseError(res))
	}
	return nil
}

// Get fetches the document identified by id.
func (e *Elastic) Get(ctx context.Context, id string) (*company.Record, error) {
	res, err := esapi.GetRequest{Index: e.index, DocumentID: id}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("getting %s: %w", id, responseError(res))
	}

	var doc struct {
		Source company.Record `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", id, err)
	}
	return &doc.Source, nil
}

// searchFields are matched by free-text queries.
var searchFields = []string{"name^3", "sign^2", "city", "siret", "siren", "ape", "postal_code"}

// Search runs a multi_match query over the searchable fields.
func (e *Elastic) Search(ctx context.Context, query string, size int) ([]company.Record, error) {
	q := map[string]any{"match_all": map[string]any{}}
	if query = strings.TrimSpace(query); query != "" {
		q = map[string]any{
			"multi_match": map[string]any{
				"query":   query,
				"fields":  searchFields,
				"lenient": true,
			},
		}
	}
	body, err := json.Marshal(map[string]any{"query": q})
	if err != nil {
		return nil, err
	}

	res, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("searching %q: %w", query, responseError(res))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source company.Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	records := make([]company.Record, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}

// Delete removes the document identified by id.
func (e *Elastic) Delete(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: e.index, DocumentID: id}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if res.IsError() {
		return fmt.Errorf("deleting %s: %w", id, responseError(res))
	}
	return nil
}

// Count returns the number of documents in the index.
func (e *Elastic) Count(ctx context.Context) (int64, error) {
	res, err := esapi.CountRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("counting %s: %w", e.index, responseError(res))
	}

	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return result.Count, nil
}

// Close is a no-op: the client holds no resources that need releasing.
func (e *Elastic) Close(ctx context.Context) error {
	return nil
}

// =============================================================================
// UPDATE BY QUERY
// =============================================================================

// denormalizeScript rewrites params.target from params.source through the
// params.lookup table. Documents without a matching key are left untouched.
const denormalizeScript = `def value = ctx._source[params.source];
if (value != null && params.lookup.containsKey(value.toString())) {
  ctx._source[params.target] = params.lookup[value.toString()];
} else {
  ctx.op = 'noop';
}`

// UpdateByQuery runs a denormalization pass server side.
//
// PARAMETERS:
//   - d: The source/target fields and the lookup table.
//
// RETURNS:
//   - The pass summary. Per-document failures are listed, never dropped.
//   - An error if the request itself fails.
func (e *Elastic) UpdateByQuery(ctx context.Context, d Denormalization) (*UpdateByQueryResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(denormalizeRequest(d))
	if err != nil {
		return nil, err
	}

	refresh := true
	res, err := esapi.UpdateByQueryRequest{
		Index:     []string{e.index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
		Refresh:   &refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("update by query on %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("update by query on %s: %w", e.index, responseError(res))
	}

	var raw struct {
		Total    int64 `json:"total"`
		Updated  int64 `json:"updated"`
		Noops    int64 `json:"noops"`
		Failures []struct {
			ID    string `json:"id"`
			Cause struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"cause"`
		} `json:"failures"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding update by query response: %w", err)
	}

	result := &UpdateByQueryResult{
		Total:   raw.Total,
		Updated: raw.Updated,
		Noops:   raw.Noops,
	}
	for _, f := range raw.Failures {
		result.Failures = append(result.Failures, Failure{
			ID:     f.ID,
			Reason: f.Cause.Type + ": " + f.Cause.Reason,
		})
	}
	return result, nil
}

// denormalizeRequest builds the update-by-query body.
func denormalizeRequest(d Denormalization) map[string]any {
	query := map[string]any{
		"filter": []any{
			map[string]any{"exists": map[string]any{"field": d.Source}},
		},
	}
	if d.OnlyMissing {
		query["must_not"] = []any{
			map[string]any{"exists": map[string]any{"field": d.Target}},
		}
	}

	return map[string]any{
		"query": map[string]any{"bool": query},
		"script": map[string]any{
			"lang":   "painless",
			"source": denormalizeScript,
			"params": map[string]any{
				"source": d.Source,
				"target": d.Target,
				"lookup": d.Lookup,
			},
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// responseError turns an error response into an error carrying the
// Elasticsearch error type and reason when the body has them.
func responseError(res *esapi.Response) error {
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil || body.Error.Type == "" {
		return fmt.Errorf("elasticsearch error: %s", res.Status())
	}
	return fmt.Errorf("elasticsearch error [%d] %s: %s", res.StatusCode, body.Error.Type, body.Error.Reason)
}

// drain consumes and closes a response body so the connection is reused.
func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
