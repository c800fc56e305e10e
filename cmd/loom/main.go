// loom is a small CLI for inspecting a running loom-d over its ops API.
// Mutations go through MCP; this tool only reads.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/loomlab/loom/pkg/client"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func usage() {
	fmt.Println(`Usage: loom <command> [args]

Commands:
  list                     list workflows in the session
  show <workflow-id>       show one workflow with nodes and links
  validate <workflow-id>   run structural validation
  export <workflow-id> <path|->  write the portable JSON document
  types [name]             list node types, or describe one
  logs [-n N] [-level L] [-workflow ID]  show recent operations
  version                  print version

Environment:
  LOOM_ENDPOINT   daemon base URL (default http://127.0.0.1:8091)
  LOOM_API_TOKEN  bearer token when the daemon requires one`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	c := client.NewClient(os.Getenv("LOOM_ENDPOINT"), os.Getenv("LOOM_API_TOKEN"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(ctx, c)
	case "show":
		if len(os.Args) < 3 {
			fmt.Println("Usage: loom show <workflow-id>")
			os.Exit(1)
		}
		err = runShow(ctx, c, os.Args[2])
	case "validate":
		if len(os.Args) < 3 {
			fmt.Println("Usage: loom validate <workflow-id>")
			os.Exit(1)
		}
		err = runValidate(ctx, c, os.Args[2])
	case "export":
		if len(os.Args) < 4 {
			fmt.Println("Usage: loom export <workflow-id> <path|->")
			os.Exit(1)
		}
		err = runExport(ctx, c, os.Args[2], os.Args[3])
	case "types":
		name := ""
		if len(os.Args) > 2 {
			name = os.Args[2]
		}
		err = runTypes(ctx, c, name)
	case "logs":
		err = runLogs(ctx, c, os.Args[2:])
	case "version":
		fmt.Printf("loom %s (%s, built %s)\n", Version, Commit, BuildTime)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", apiErr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintln(os.Stderr, "Is loom-d running?")
		}
		os.Exit(1)
	}
}

func runList(ctx context.Context, c *client.Client) error {
	workflows, err := c.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		fmt.Println("No workflows in the session.")
		return nil
	}

	fmt.Printf("%-38s %-24s %6s %6s %s\n", "ID", "NAME", "NODES", "LINKS", "ACTIVE")
	for _, w := range workflows {
		active := ""
		if w.Active {
			active = "*"
		}
		fmt.Printf("%-38s %-24s %6d %6d %s\n", w.ID, w.Name, w.Nodes, w.Links, active)
	}
	return nil
}

func runShow(ctx context.Context, c *client.Client, id string) error {
	detail, err := c.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runValidate(ctx context.Context, c *client.Client, id string) error {
	report, err := c.Validate(ctx, id)
	if err != nil {
		return err
	}

	for _, issue := range report.Errors {
		fmt.Printf("ERROR %s: %s\n", issue.Code, issue.Message)
	}
	for _, issue := range report.Warnings {
		fmt.Printf("WARN  %s: %s\n", issue.Code, issue.Message)
	}
	if report.Valid {
		fmt.Printf("Workflow %s is valid (%d warnings).\n", id, len(report.Warnings))
		return nil
	}
	fmt.Printf("Workflow %s has %d errors.\n", id, len(report.Errors))
	os.Exit(1)
	return nil
}

func runExport(ctx context.Context, c *client.Client, id, path string) error {
	doc, err := c.GetPortable(ctx, id)
	if err != nil {
		return err
	}

	if path == "-" {
		fmt.Println(string(doc))
		return nil
	}
	if err := os.WriteFile(path, append(doc, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Exported workflow %s to %s\n", id, path)
	return nil
}

func runTypes(ctx context.Context, c *client.Client, name string) error {
	if name != "" {
		nt, err := c.DescribeType(ctx, name)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(nt, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode node type: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	types, err := c.Catalog(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-24s %7s %8s\n", "NAME", "INPUTS", "OUTPUTS")
	for _, nt := range types {
		fmt.Printf("%-24s %7d %8d\n", nt.Name, len(nt.Inputs), len(nt.Outputs))
	}
	return nil
}

func runLogs(ctx context.Context, c *client.Client, args []string) error {
	flagSet := flag.NewFlagSet("logs", flag.ContinueOnError)
	limit := flagSet.Int("n", 50, "maximum entries")
	level := flagSet.String("level", "", "only entries at this level: debug|info|warn|error")
	workflowID := flagSet.String("workflow", "", "only entries for this workflow")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	entries, err := c.GetLogs(ctx, client.LogOptions{
		Limit:      *limit,
		Level:      *level,
		WorkflowID: *workflowID,
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		wf := ""
		if e.WorkflowID != "" {
			wf = " [" + e.WorkflowID + "]"
		}
		fmt.Printf("%s %-5s %-28s %s%s\n",
			e.Time.Local().Format("15:04:05"), e.Level, e.Op, e.Message, wf)
	}
	return nil
}
