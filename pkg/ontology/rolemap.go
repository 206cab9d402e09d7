// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ontology

import "strings"

// RoleMap resolves ambiguous column names to canonical entity names. Keys
// are matched case-insensitively against full column names and have the
// highest precedence among the inference rules.
type RoleMap map[string]string

// DefaultRoleMap covers the common business-document roles where the
// column name does not contain the entity name.
func DefaultRoleMap() RoleMap {
	return RoleMap{
		"supplier":       "Supplier",
		"vendor":         "Supplier",
		"invoicingparty": "Supplier",
		"customer":       "Customer",
		"soldtoparty":    "Customer",
		"shiptoparty":    "Customer",
		"billtoparty":    "Customer",
		"material":       "Material",
		"product":        "Product",
		"plant":          "Plant",
		"receivingplant": "Plant",
		"companycode":    "CompanyCode",
		"purchaseorder":  "PurchaseOrder",
		"salesorder":     "SalesOrder",
		"invoice":        "Invoice",
	}
}

// Resolve returns the canonical entity for a column name, matching
// case-insensitively on the full name.
func (m RoleMap) Resolve(column string) (string, bool) {
	target, ok := m[strings.ToLower(column)]
	return target, ok
}

// Merge returns a copy of m overlaid with the entries of other. Neither
// input is modified.
func (m RoleMap) Merge(other RoleMap) RoleMap {
	merged := make(RoleMap, len(m)+len(other))
	for k, v := range m {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range other {
		merged[strings.ToLower(k)] = v
	}
	return merged
}
