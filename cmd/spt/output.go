package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// outputFormat is the value of --output.
type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputYAML  outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(value string) error {
	switch format := outputFormat(strings.ToLower(strings.TrimSpace(value))); format {
	case outputTable, outputJSON, outputYAML:
		*f = format
		return nil
	default:
		return fmt.Errorf("must be one of table, json, yaml")
	}
}

func (f *outputFormat) Type() string { return "format" }

// writeOutput encodes value as --output asks, or calls table for the
// table format.
func writeOutput(w io.Writer, value any, table func(io.Writer) error) error {
	switch flagOutput {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(w)
	}
}
