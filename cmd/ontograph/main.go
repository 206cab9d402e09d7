// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes follow sysexits conventions loosely.
const (
	exitSuccess = 0
	exitError   = 1
)

var rootCmd = &cobra.Command{
	Use:   "ontograph",
	Short: "Relationship discovery and graph queries over relational data",
	Long: `ontograph discovers entity relationships in relational schemas and
answers graph queries over them.

Nodes are addressed as "Label:Key" (e.g. "Supplier:S100"). Relationship
discovery infers typed edges from schema metadata; the graph engines answer
neighbor, path, traversal, and subgraph queries over the discovered graph.

Configuration is read from a YAML file (default: ontograph.yaml).

Examples:
  ontograph discover
  ontograph neighbors "Supplier:S100" --direction both
  ontograph path "PurchaseOrder:PO-1" "Invoice:INV-9"
  ontograph traverse "Customer:C200" --depth 2
  ontograph stats`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
}
