// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supplierRelationship() DiscoveredEdge {
	return DiscoveredEdge{
		SourceLabel:     "PurchaseOrder",
		SourceKeyColumn: "PurchaseOrderNumber",
		SourceColumn:    "SupplierNumber",
		TargetLabel:     "Supplier",
		EdgeType:        EdgeTypeKeySuffix,
		EdgeLabel:       "HAS_SUPPLIER",
	}
}

func materialRelationship() DiscoveredEdge {
	return DiscoveredEdge{
		SourceLabel:     "PurchaseOrder",
		SourceKeyColumn: "PurchaseOrderNumber",
		SourceColumn:    "MaterialNumber",
		TargetLabel:     "Material",
		EdgeType:        EdgeTypeKeySuffix,
		EdgeLabel:       "HAS_MATERIAL",
	}
}

func newLoaderFixture(t *testing.T, schema []DiscoveredEdge, ds *fakeDataSource) (*Loader, *MemStore) {
	t.Helper()
	store := NewMemStore(0)
	require.NoError(t, store.SaveAll(context.Background(), ScopeSchema, schema))
	return NewLoader(store, ds, nil), store
}

func TestLoad_BindsRowPairs(t *testing.T) {
	ds := &fakeDataSource{results: map[string][]map[string]any{
		"PurchaseOrder": {
			{"PurchaseOrderNumber": "PO-1", "SupplierNumber": "S100"},
			{"PurchaseOrderNumber": "PO-2", "SupplierNumber": "S200"},
		},
	}}
	loader, store := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)

	count, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	instances, err := store.LoadScope(context.Background(), ScopeInstances)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.True(t, instances[0].IsBound())
	assert.Equal(t, "PurchaseOrder:PO-1", instances[0].SourceID())
	assert.Equal(t, "Supplier:S100", instances[0].TargetID())
	assert.Equal(t, "HAS_SUPPLIER", instances[0].EdgeLabel)
}

func TestLoad_DeduplicatesPairs(t *testing.T) {
	ds := &fakeDataSource{results: map[string][]map[string]any{
		"PurchaseOrder": {
			{"PurchaseOrderNumber": "PO-1", "SupplierNumber": "S100"},
			{"PurchaseOrderNumber": "PO-1", "SupplierNumber": "S100"},
		},
	}}
	loader, _ := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)

	count, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoad_SkipsEmptyAndCoercesScalars(t *testing.T) {
	ds := &fakeDataSource{results: map[string][]map[string]any{
		"PurchaseOrder": {
			{"PurchaseOrderNumber": "PO-1", "SupplierNumber": nil},
			{"PurchaseOrderNumber": "", "SupplierNumber": "S100"},
			{"PurchaseOrderNumber": "PO-2", "SupplierNumber": []byte("S200")},
			{"PurchaseOrderNumber": "PO-3", "SupplierNumber": 300},
		},
	}}
	loader, store := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)

	count, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	instances, err := store.LoadScope(context.Background(), ScopeInstances)
	require.NoError(t, err)
	assert.Equal(t, "Supplier:S200", instances[0].TargetID())
	assert.Equal(t, "Supplier:300", instances[1].TargetID())
}

func TestLoad_FailedQuerySkipsRelationship(t *testing.T) {
	ds := &fakeDataSource{
		results: map[string][]map[string]any{
			"PurchaseOrder": {
				{"PurchaseOrderNumber": "PO-1", "MaterialNumber": "M-1"},
			},
		},
		failQueries: map[string]bool{"SupplierNumber": true},
	}
	loader, store := newLoaderFixture(t,
		[]DiscoveredEdge{supplierRelationship(), materialRelationship()}, ds)

	count, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	instances, err := store.LoadScope(context.Background(), ScopeInstances)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "HAS_MATERIAL", instances[0].EdgeLabel)
}

func TestLoad_QueryShape(t *testing.T) {
	ds := &fakeDataSource{}
	loader, _ := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)

	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.queries, 1)
	assert.Contains(t, ds.queries[0], `SELECT "PurchaseOrderNumber", "SupplierNumber" FROM "PurchaseOrder"`)
	assert.Contains(t, ds.queries[0], `IS NOT NULL`)
}

func TestLoad_StoreReadFailure(t *testing.T) {
	ds := &fakeDataSource{}
	loader, store := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)
	store.FailNext.Store(true)

	_, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestLoad_ReplacesInstanceScope(t *testing.T) {
	ctx := context.Background()
	ds := &fakeDataSource{results: map[string][]map[string]any{
		"PurchaseOrder": {
			{"PurchaseOrderNumber": "PO-1", "SupplierNumber": "S100"},
		},
	}}
	loader, store := newLoaderFixture(t, []DiscoveredEdge{supplierRelationship()}, ds)
	require.NoError(t, store.SaveAll(ctx, ScopeInstances, []DiscoveredEdge{
		{SourceLabel: "Stale", SourceKey: "1", TargetLabel: "Row", TargetKey: "1"},
	}))

	count, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	instances, err := store.LoadScope(ctx, ScopeInstances)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "PurchaseOrder", instances[0].SourceLabel)
}
