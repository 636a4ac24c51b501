// Command printstack operates a PrintStack environment from the shell:
// storage inspection, legacy migration, backup export and restore, and
// aggregate statistics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"printstack/internal/core"
)

var exitFunc = os.Exit

const usageText = `usage: printstack <command> [flags]

commands:
  info      print environment, namespace, and storage health
  migrate   run the legacy key migration and print the report
  cleanup   remove residual legacy keys after migration
  stats     print aggregate statistics for all collections
  export    write a backup snapshot to the artifact store
  restore   restore a backup snapshot (-key required)
  backups   list backup snapshots for this environment
`

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}
	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	artifactKey := fs.String("key", "", "artifact key for restore")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	logger, flush, err := core.NewZapLogger()
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer flush()

	ctx := context.Background()
	svc, err := core.OpenFromEnv(ctx, logger)
	if err != nil {
		fmt.Fprintf(stderr, "open: %v\n", err)
		return 1
	}
	if err := svc.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return 1
	}

	switch command {
	case "info":
		return emit(stdout, stderr, map[string]any{
			"environment": svc.Resolver().Environment(),
			"namespace":   svc.Resolver().Namespace(),
			"storage":     svc.StorageInfo(),
		})
	case "migrate":
		report, _ := svc.MigrationReport()
		return emit(stdout, stderr, report)
	case "cleanup":
		removed, err := svc.CleanupLegacyData(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "cleanup: %v\n", err)
			return 1
		}
		return emit(stdout, stderr, map[string]any{"removed": removed})
	case "stats":
		snap, err := svc.Statistics(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "stats: %v\n", err)
			return 1
		}
		return emit(stdout, stderr, snap)
	case "export":
		artifact, err := svc.ExportBackup(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return 1
		}
		return emit(stdout, stderr, artifact)
	case "restore":
		if *artifactKey == "" {
			fmt.Fprintln(stderr, "restore requires -key")
			return 2
		}
		report, err := svc.RestoreBackup(ctx, *artifactKey)
		if err != nil {
			fmt.Fprintf(stderr, "restore: %v\n", err)
			return 1
		}
		return emit(stdout, stderr, report)
	case "backups":
		mgr, err := svc.Backups()
		if err != nil {
			fmt.Fprintf(stderr, "backups: %v\n", err)
			return 1
		}
		artifacts, err := mgr.List(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "backups: %v\n", err)
			return 1
		}
		return emit(stdout, stderr, artifacts)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fmt.Fprint(stderr, usageText)
		return 2
	}
}

func emit(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}
