package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"curriculum-backend/internal/config"
	"curriculum-backend/pkg/courseschema"
	"curriculum-backend/pkg/logger"
)

type options struct {
	schemaVersion int
	out           string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &options{schemaVersion: cfg.ContentSchemaVersion}

	root := &cobra.Command{
		Use:           "contentctl",
		Short:         "Migrate lesson content and normalize course files offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&opts.schemaVersion, "schema-version", opts.schemaVersion, "content schema version to stamp")
	root.PersistentFlags().StringVarP(&opts.out, "out", "o", "", "write output to this file instead of stdout")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate <file>",
			Short: "Migrate one lesson content record, or a list of them, to the current schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "normalize <file>",
			Short: "Normalize a course, or a list of courses",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runNormalize(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "detect <file>",
			Short: "Print the legacy shape of each lesson content record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDetect(cmd, opts, args[0])
			},
		},
	)
	return root
}

func runMigrate(cmd *cobra.Command, opts *options, path string) error {
	records, list, err := readRecords(path)
	if err != nil {
		return err
	}

	migrator := courseschema.NewMigrator(opts.schemaVersion)
	out := make([]courseschema.LessonContent, 0, len(records))
	legacy := 0
	for _, record := range records {
		content, report := migrator.MigrateWithReport(record)
		if report.Legacy {
			legacy++
		}
		out = append(out, content)
	}

	logger.Debug("Migrated lesson content", map[string]interface{}{"file": path, "records": len(out), "legacy": legacy})
	if list {
		return writeJSON(cmd, opts, out)
	}
	return writeJSON(cmd, opts, out[0])
}

func runNormalize(cmd *cobra.Command, opts *options, path string) error {
	records, list, err := readRecords(path)
	if err != nil {
		return err
	}

	normalizer := courseschema.NewNormalizer(courseschema.NewMigrator(opts.schemaVersion))
	out := make([]courseschema.Course, 0, len(records))
	for _, record := range records {
		out = append(out, normalizer.Normalize(record))
	}

	if list {
		return writeJSON(cmd, opts, out)
	}
	return writeJSON(cmd, opts, out[0])
}

type detection struct {
	Index int                      `json:"index"`
	Shape courseschema.LegacyShape `json:"shape"`
	Type  courseschema.ContentType `json:"type,omitempty"`
}

func runDetect(cmd *cobra.Command, opts *options, path string) error {
	records, _, err := readRecords(path)
	if err != nil {
		return err
	}

	out := make([]detection, 0, len(records))
	for i, record := range records {
		shape := courseschema.DetectShape(record)
		out = append(out, detection{Index: i, Shape: shape, Type: shape.ContentType()})
	}
	return writeJSON(cmd, opts, out)
}

// readRecords decodes a JSON or YAML file by extension. A top-level list is
// returned element by element with list set.
func readRecords(path string) (records []any, list bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, false, fmt.Errorf("unsupported file type %q: use .json, .yaml or .yml", filepath.Ext(path))
	}

	if items, ok := doc.([]any); ok {
		if len(items) == 0 {
			return nil, false, fmt.Errorf("%s holds an empty list", path)
		}
		return items, true, nil
	}
	return []any{doc}, false, nil
}

func writeJSON(cmd *cobra.Command, opts *options, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')

	if opts.out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.out, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", opts.out, err)
	}
	return nil
}
