// Schema Generator
//
// Generates JSON Schema files from the API request/response types so the
// React front end can derive its client-side validators from them. Go is
// the source of truth for the shared shapes.
//
// Usage:
//
//	go run cmd/schema-gen/main.go
//
// Output:
//
//	./schemas/demotes.json
//	./schemas/rules.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/mercantil/demote-service/internal/handlers"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

func main() {
	outputDir := "./schemas"

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	groups := []SchemaGroup{
		{
			Name: "demotes",
			Types: []any{
				handlers.ListDemotesRequest{},
				handlers.ListDemotesResponse{},
				handlers.PostDemotesRequest{},
				handlers.PostDemotesResponse{},
			},
			Output: filepath.Join(outputDir, "demotes.json"),
		},
		{
			Name: "rules",
			Types: []any{
				handlers.RuleRequest{},
				handlers.RuleBalanceDTO{},
				handlers.ApplicationRequest{},
				handlers.UpdateApplicationRequest{},
				handlers.ResultDTO{},
			},
			Output: filepath.Join(outputDir, "rules.json"),
		},
	}

	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}

	for _, group := range groups {
		combined := map[string]any{}
		for _, t := range group.Types {
			schema := reflector.Reflect(t)
			name := typeName(t)
			combined[name] = schema
		}

		data, err := json.MarshalIndent(combined, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal %s schemas: %v\n", group.Name, err)
			os.Exit(1)
		}

		if err := os.WriteFile(group.Output, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", group.Output)
	}
}

func typeName(t any) string {
	full := fmt.Sprintf("%T", t)
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		return full[idx+1:]
	}
	return full
}
