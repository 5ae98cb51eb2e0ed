// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vectordb implements a client for the Milvus RESTful v2 API. The
// engine only depends on the search operation; collection management and
// inserts exist for the init and ingest stages.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/expert-engine/internal/httputil"
	"github.com/pdiddy/expert-engine/pkg/types"
)

const (
	searchPath         = "/v2/vectordb/entities/search"
	insertPath         = "/v2/vectordb/entities/insert"
	hasCollectionPath  = "/v2/vectordb/collections/has"
	createCollPath     = "/v2/vectordb/collections/create"
	dropCollectionPath = "/v2/vectordb/collections/drop"
	loadCollectionPath = "/v2/vectordb/collections/load"
)

// Client talks to a Milvus instance over HTTP.
type Client struct {
	cfg        types.MilvusConfig
	httpClient *http.Client
	maxRetries int
}

// NewClient builds a Milvus client from config.
func NewClient(cfg types.MilvusConfig, maxRetries int) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: maxRetries,
	}
}

// post sends a JSON request to a Milvus v2 endpoint and decodes the envelope.
func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	if c.cfg.DBName != "" {
		body["dbName"] = c.cfg.DBName
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("milvus request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("milvus %s returned HTTP %d", path, resp.StatusCode)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("parsing milvus response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("milvus %s failed: code %d: %s", path, envelope.Code, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("parsing milvus response data: %w", err)
		}
	}
	return nil
}

// Search runs one vector similarity query against a collection and returns
// the hits with the requested output fields.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, filter string, outputFields []string) ([]types.SearchHit, error) {
	body := map[string]any{
		"collectionName": collection,
		"data":           [][]float32{vector},
		"annsField":      "embedding",
		"limit":          topK,
		"outputFields":   outputFields,
	}
	if filter != "" {
		body["filter"] = filter
	}

	var rows []map[string]any
	if err := c.post(ctx, searchPath, body, &rows); err != nil {
		return nil, err
	}

	hits := make([]types.SearchHit, 0, len(rows))
	for _, row := range rows {
		hit := types.SearchHit{Entity: make(map[string]any, len(row))}
		for k, v := range row {
			switch k {
			case "distance":
				if d, ok := v.(float64); ok {
					hit.Distance = d
				}
			case "id":
				if id, ok := v.(string); ok {
					hit.ID = id
				}
				hit.Entity[k] = v
			default:
				hit.Entity[k] = v
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Insert writes rows into a collection and returns the insert count.
func (c *Client) Insert(ctx context.Context, collection string, rows []map[string]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var data struct {
		InsertCount int `json:"insertCount"`
	}
	err := c.post(ctx, insertPath, map[string]any{
		"collectionName": collection,
		"data":           rows,
	}, &data)
	if err != nil {
		return 0, err
	}
	return data.InsertCount, nil
}

// HasCollection reports whether a collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	var data struct {
		Has bool `json:"has"`
	}
	err := c.post(ctx, hasCollectionPath, map[string]any{"collectionName": name}, &data)
	if err != nil {
		return false, err
	}
	return data.Has, nil
}

// CreateCollection creates a collection from a schema and loads it.
func (c *Client) CreateCollection(ctx context.Context, req CreateCollectionRequest) error {
	body := map[string]any{
		"collectionName": req.Name,
		"schema": map[string]any{
			"autoId":             false,
			"enableDynamicField": false,
			"fields":             req.Fields,
		},
		"indexParams": req.IndexParams,
	}
	if err := c.post(ctx, createCollPath, body, nil); err != nil {
		return err
	}
	return c.post(ctx, loadCollectionPath, map[string]any{"collectionName": req.Name}, nil)
}

// DropCollection removes a collection and its data.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	return c.post(ctx, dropCollectionPath, map[string]any{"collectionName": name}, nil)
}

// CreateCollectionRequest describes a collection schema for CreateCollection.
type CreateCollectionRequest struct {
	Name        string
	Fields      []Field
	IndexParams []IndexParam
}

// Field is one collection field in Milvus schema terms.
type Field struct {
	FieldName         string         `json:"fieldName"`
	DataType          string         `json:"dataType"`
	IsPrimary         bool           `json:"isPrimary,omitempty"`
	ElementDataType   string         `json:"elementDataType,omitempty"`
	ElementTypeParams map[string]any `json:"elementTypeParams,omitempty"`
}

// IndexParam is one index declaration in Milvus schema terms.
type IndexParam struct {
	FieldName  string         `json:"fieldName"`
	IndexName  string         `json:"indexName"`
	MetricType string         `json:"metricType,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}
