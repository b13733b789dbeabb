// Package search mirrors complaints into Elasticsearch so citizens and staff
// can find existing reports by free text before filing new ones. The index is
// a read model: the registry stays authoritative, and the processor refreshes
// the index in the background.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

const (
	// DefaultIndexName is the complaint index unless configured otherwise.
	DefaultIndexName = "complaints"

	maxPageSize     = 100
	defaultPageSize = 20
)

// Entry pairs a complaint with the priority score computed for it at index
// time.
type Entry struct {
	Complaint     *domain.Complaint
	PriorityScore float64
}

// Hit is one search result.
type Hit struct {
	Complaint     domain.Complaint `json:"complaint"`
	PriorityScore float64          `json:"priority_score"`
}

// Request describes a complaint search.
type Request struct {
	Query    string
	Category domain.Category
	Statuses []domain.Status
	Size     int
}

// Index wraps the complaint index in Elasticsearch.
type Index struct {
	client *es.Client
	name   string
}

// NewIndex creates an Index over the given client. An empty name falls back
// to DefaultIndexName.
func NewIndex(client *es.Client, name string) *Index {
	if name == "" {
		name = DefaultIndexName
	}
	return &Index{
		client: client,
		name:   name,
	}
}

// Name returns the backing index name.
func (i *Index) Name() string {
	return i.name
}

// Ensure creates the complaint index with its mapping when it does not exist.
func (i *Index) Ensure(ctx context.Context) error {
	exists, err := i.exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		return nil
	}

	mappingBytes, err := json.Marshal(NewComplaintMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err := i.client.Indices.Create(
		i.name,
		i.client.Indices.Create.WithBody(bytes.NewReader(mappingBytes)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// IndexComplaint writes one complaint document, replacing any prior version.
func (i *Index) IndexComplaint(ctx context.Context, entry Entry) error {
	docBytes, err := json.Marshal(newDocument(entry, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := i.client.Index(
		i.name,
		bytes.NewReader(docBytes),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(entry.Complaint.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// BulkIndex writes a batch of complaint documents in one request.
func (i *Index) BulkIndex(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()

	var buf bytes.Buffer
	for _, entry := range entries {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": i.name,
				"_id":    entry.Complaint.ID,
			},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return fmt.Errorf("failed to encode meta: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(newDocument(entry, now)); err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
	}

	res, err := i.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		i.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk indexing error: %s", res.String())
	}

	return nil
}

// Search runs a full-text query over complaint texts, optionally filtered by
// category and status. It returns the matching page and the total hit count.
func (i *Index) Search(ctx context.Context, req Request) ([]Hit, int, error) {
	queryBytes, err := json.Marshal(BuildQuery(req))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(bytes.NewReader(queryBytes)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("error searching: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string   `json:"_id"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, 0, fmt.Errorf("error decoding response: %w", err)
	}

	hits := make([]Hit, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		c := hit.Source.Complaint
		if c.ID == "" {
			c.ID = hit.ID
		}
		hits = append(hits, Hit{
			Complaint:     c,
			PriorityScore: hit.Source.PriorityScore,
		})
	}

	return hits, searchResult.Hits.Total.Value, nil
}

// TestConnection verifies the cluster responds.
func (i *Index) TestConnection(ctx context.Context) error {
	res, err := i.client.Info(i.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response from Elasticsearch: %s", res.String())
	}

	return nil
}

func (i *Index) exists(ctx context.Context) (bool, error) {
	res, err := i.client.Indices.Exists(
		[]string{i.name},
		i.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("error checking index existence: %s", res.String())
	}

	return true, nil
}

// document is the indexed shape of a complaint. Voter identities carry a
// json:"-" tag on the entity and never reach the index; the transition
// history is shadowed out here because it is registry audit data, not search
// material.
type document struct {
	domain.Complaint
	History       []domain.Transition `json:"-"`
	PriorityScore float64             `json:"priority_score"`
	IndexedAt     time.Time           `json:"indexed_at"`
}

func newDocument(entry Entry, indexedAt time.Time) document {
	return document{
		Complaint:     *entry.Complaint,
		PriorityScore: entry.PriorityScore,
		IndexedAt:     indexedAt,
	}
}

// BuildQuery constructs the Elasticsearch request body for a search. Exposed
// for tests; Search callers use the Index methods.
func BuildQuery(req Request) map[string]interface{} {
	size := req.Size
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	boolQuery := map[string]interface{}{}

	if q := strings.TrimSpace(req.Query); q != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query": q,
					"fields": []string{
						"text^3",
						"contributing_texts^1",
					},
					"type":      "best_fields",
					"operator":  "or",
					"fuzziness": "AUTO",
				},
			},
		}
	}

	var filters []interface{}
	if req.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{
				"category": string(req.Category),
			},
		})
	}
	if len(req.Statuses) > 0 {
		statuses := make([]string, len(req.Statuses))
		for idx, s := range req.Statuses {
			statuses[idx] = string(s)
		}
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{
				"status": statuses,
			},
		})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"size": size,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"priority_score": map[string]interface{}{"order": "desc"}},
		},
		"track_total_hits": true,
	}
}
