package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"sparkify/internal/datasource"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the dotted YAML path of the offending field (e.g. "sink.compression").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c. It does not mutate c.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, p, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: p, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels logs and metrics")
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		add(SeverityError, "log.format", "unknown log format %q (want console or json)", c.Log.Format)
	}

	if strings.TrimSpace(c.Input.Root) == "" {
		add(SeverityError, "input.root", "input root must not be empty")
	}
	issues = append(issues, validateRoot("input.root", c.Input.Root)...)
	for p, g := range map[string]string{"input.song_glob": c.Input.SongGlob, "input.log_glob": c.Input.LogGlob} {
		if strings.TrimSpace(g) == "" {
			add(SeverityError, p, "glob must not be empty")
			continue
		}
		if _, err := path.Match(g, ""); err != nil {
			add(SeverityError, p, "invalid glob %q: %v", g, err)
		}
	}
	if c.Input.ReadWorkers <= 0 {
		add(SeverityError, "input.read_workers", "read_workers must be > 0")
	}

	if strings.TrimSpace(c.Output.Root) == "" {
		add(SeverityError, "output.root", "output root must not be empty")
	}
	issues = append(issues, validateRoot("output.root", c.Output.Root)...)
	if strings.ContainsAny(c.Output.Suffix, `/\`) {
		add(SeverityError, "output.suffix", "suffix must not contain path separators")
	}

	switch strings.ToLower(c.Sink.Compression) {
	case "snappy", "gzip", "zstd", "uncompressed", "none":
	default:
		add(SeverityError, "sink.compression", "unknown codec %q", c.Sink.Compression)
	}
	if c.Sink.RowGroupMB <= 0 {
		add(SeverityError, "sink.row_group_mb", "row_group_mb must be > 0")
	}
	if c.Sink.MaxRowsPerFile <= 0 {
		add(SeverityError, "sink.max_rows_per_file", "max_rows_per_file must be > 0")
	}

	switch c.Warehouse.Kind {
	case "":
	case "postgres", "sqlite", "mssql", "mysql":
		if strings.TrimSpace(c.Warehouse.DSN) == "" {
			add(SeverityError, "warehouse.dsn", "warehouse %s requires WAREHOUSE_DSN", c.Warehouse.Kind)
		}
		if c.Warehouse.BatchSize <= 0 {
			add(SeverityError, "warehouse.batch_size", "batch_size must be > 0")
		}
		if c.Warehouse.Kind == "sqlite" && c.Warehouse.Schema != "" {
			add(SeverityWarning, "warehouse.schema", "schema is ignored for sqlite")
		}
	default:
		add(SeverityError, "warehouse.kind", "unknown warehouse kind %q (want postgres, sqlite, mssql or mysql)", c.Warehouse.Kind)
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		add(SeverityWarning, "aws", "only one of access_key_id and secret_access_key is set; using the default credential chain")
	}

	if c.Runtime.Workers < 0 {
		add(SeverityError, "runtime.workers", "workers must be >= 0")
	}
	if c.Runtime.ChunkRows <= 0 {
		add(SeverityError, "runtime.chunk_rows", "chunk_rows must be > 0")
	}
	if c.Runtime.Timezone != "" && c.Runtime.Timezone != "UTC" {
		if _, err := time.LoadLocation(c.Runtime.Timezone); err != nil {
			add(SeverityError, "runtime.timezone", "unknown time zone %q", c.Runtime.Timezone)
		}
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(c.Metrics.PushgatewayURL) == "" {
			add(SeverityError, "metrics.pushgateway_url", "pushgateway backend requires a URL")
		}
	case "datadog":
		if strings.TrimSpace(c.Metrics.DatadogAddr) == "" {
			add(SeverityError, "metrics.datadog_addr", "datadog backend requires an address")
		}
	default:
		add(SeverityWarning, "metrics.backend", "unknown metrics backend %q; metrics disabled", c.Metrics.Backend)
	}

	return issues
}

func validateRoot(p, root string) []Issue {
	if !datasource.IsS3(root) {
		return nil
	}
	if _, _, err := datasource.SplitS3(root); err != nil {
		return []Issue{{Severity: SeverityError, Path: p, Message: err.Error()}}
	}
	return nil
}
