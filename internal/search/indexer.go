// internal/search/indexer.go
// Package search mirrors application snapshots into Elasticsearch and
// serves the admin search endpoint. Indexing is fire-and-forget; the
// workflow never waits on it and never sees its failures.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"letter-service/internal/common/logger"
	"letter-service/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexTimeout = 10 * time.Second

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = "applications"
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// ApplicationUpdated indexes the current snapshot under the application ID.
// Runs asynchronously so workflow transitions never block on Elasticsearch.
func (i *Indexer) ApplicationUpdated(app *models.Application) {
	doc := i.document(app)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()

		body, err := json.Marshal(doc)
		if err != nil {
			i.logger.Warn("failed to marshal application document", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
			return
		}

		req := esapi.IndexRequest{
			Index:      i.index,
			DocumentID: app.ID,
			Body:       bytes.NewReader(body),
			Refresh:    "false",
		}
		res, err := req.Do(ctx, i.client)
		if err != nil {
			i.logger.Warn("failed to index application", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
			return
		}
		defer res.Body.Close()

		if res.IsError() {
			i.logger.Warn("elasticsearch rejected application document", map[string]interface{}{
				"applicationId": app.ID,
				"status":        res.Status(),
			})
		}
	}()
}

func (i *Indexer) document(app *models.Application) map[string]interface{} {
	doc := map[string]interface{}{
		"id":            app.ID,
		"userId":        app.UserID,
		"packageId":     app.PackageID,
		"status":        string(app.Status),
		"paymentStatus": string(app.PaymentStatus),
		"formData":      app.FormData,
		"reworkCount":   app.ReworkCount,
		"createdAt":     app.CreatedAt,
		"updatedAt":     app.UpdatedAt,
	}
	if app.AssignedAgentID != nil {
		doc["assignedAgentId"] = *app.AssignedAgentID
	}
	if app.Level3CompletedBy != nil {
		doc["level3CompletedBy"] = *app.Level3CompletedBy
	}
	return doc
}

// Search runs a full-text query over indexed applications, optionally
// narrowed to a single status. Returns raw document sources.
func (i *Indexer) Search(ctx context.Context, query, status string, size int) ([]map[string]interface{}, error) {
	if size <= 0 || size > 100 {
		size = 25
	}

	var mustClauses []interface{}
	if query != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"formData.*", "userId", "id"},
			},
		})
	}
	if status != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"term": map[string]interface{}{"status.keyword": status},
		})
	}
	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{
			"match_all": map[string]interface{}{},
		})
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": mustClauses},
		},
		"size": size,
		"sort": []interface{}{
			map[string]interface{}{"updatedAt": map[string]interface{}{"order": "desc"}},
		},
	}

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.Status())
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	outer, ok := r["hits"].(map[string]interface{})
	if !ok {
		return []map[string]interface{}{}, nil
	}
	hits, ok := outer["hits"].([]interface{})
	if !ok {
		return []map[string]interface{}{}, nil
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		if h, ok := hit.(map[string]interface{}); ok {
			if source, ok := h["_source"].(map[string]interface{}); ok {
				results = append(results, source)
			}
		}
	}
	return results, nil
}
