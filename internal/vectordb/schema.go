// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vectordb

import (
	"fmt"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// WorkCollectionRequest describes the works collection: a string primary key,
// the embedding vector, and the scalar fields search filters and scoring
// formulas read back.
func WorkCollectionRequest(name string, idx types.IndexConfig, dimensions int) CreateCollectionRequest {
	indexType := idx.IndexType
	if indexType == "" {
		indexType = "HNSW"
	}
	metricType := idx.MetricType
	if metricType == "" {
		metricType = "IP"
	}
	m := idx.HNSWM
	if m <= 0 {
		m = 32
	}
	efConstruction := idx.HNSWEfConstruction
	if efConstruction <= 0 {
		efConstruction = 512
	}

	return CreateCollectionRequest{
		Name: name,
		Fields: []Field{
			{FieldName: "id", DataType: "VarChar", IsPrimary: true,
				ElementTypeParams: map[string]any{"max_length": 64}},
			{FieldName: "vector", DataType: "FloatVector",
				ElementTypeParams: map[string]any{"dim": dimensions}},
			{FieldName: "title", DataType: "VarChar",
				ElementTypeParams: map[string]any{"max_length": 2048}},
			{FieldName: "display_name", DataType: "VarChar",
				ElementTypeParams: map[string]any{"max_length": 2048}},
			{FieldName: "doi", DataType: "VarChar",
				ElementTypeParams: map[string]any{"max_length": 512}},
			{FieldName: "type", DataType: "VarChar",
				ElementTypeParams: map[string]any{"max_length": 64}},
			{FieldName: "publication_year", DataType: "Int64"},
			{FieldName: "cited_by_count", DataType: "Int64"},
			{FieldName: "ignore", DataType: "Bool"},
			{FieldName: "author_ids", DataType: "Array", ElementDataType: "VarChar",
				ElementTypeParams: map[string]any{"max_length": 64, "max_capacity": 512}},
		},
		IndexParams: []IndexParam{{
			FieldName:  "vector",
			IndexName:  "vector_index",
			MetricType: metricType,
			Params: map[string]any{
				"index_type":     indexType,
				"M":              m,
				"efConstruction": efConstruction,
			},
		}},
	}
}

// WorkRow converts a work and its embedding into a Milvus insert row matching
// the works collection schema.
func WorkRow(w types.Work, vector []float32) (map[string]any, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("work without id cannot be inserted")
	}
	authorIDs := w.AuthorIDs
	if authorIDs == nil {
		authorIDs = []string{}
	}
	return map[string]any{
		"id":               w.ID,
		"vector":           vector,
		"title":            w.Title,
		"display_name":     w.DisplayName,
		"doi":              w.DOI,
		"type":             w.Type,
		"publication_year": w.PublicationYear,
		"cited_by_count":   w.CitedByCount,
		"ignore":           w.Ignore,
		"author_ids":       authorIDs,
	}, nil
}
