package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"mattr/internal/types"
)

// schemaCmd prints the response contract as JSON Schema
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of an analysis result",
	Long: `Prints the JSON Schema of the structured reply the reasoning engine
returns, for tooling that consumes "mattr ask --json".`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipSetup,
	RunE:              runSchema,
}

func runSchema(cmd *cobra.Command, _ []string) error {
	data, err := analysisSchemaJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func analysisSchemaJSON() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	schema := r.Reflect(&types.AnalysisResult{})
	schema.Title = "Mattr Analysis Result"
	schema.Description = "Structured reply of the ethical reasoning engine: a short answer, an optional clarification request and the Triple Theory analysis."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// skipSetup replaces the root pre-run for commands that need no config.
func skipSetup(*cobra.Command, []string) error { return nil }
