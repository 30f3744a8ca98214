package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/operator"
	"github.com/chr1sbest/pipegate/internal/status"
)

func newOperator(configFile string) (*operator.Operator, *config.Config, bool) {
	cfg, ok := loadConfig(configFile)
	if !ok {
		return nil, nil, false
	}
	return operator.New(cfg.RunsDir()), cfg, true
}

func showCmd(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	brief := fs.Bool("brief", false, "Print the one-line summary only")
	latest := fs.Bool("latest", false, "Show the last successful run")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	op, _, ok := newOperator(*configFile)
	if !ok {
		return 1
	}

	runID := fs.Arg(0)
	if *latest {
		id, err := op.Latest()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		runID = id
	}
	st, err := op.Show(runID)
	if err != nil {
		if errors.Is(err, operator.ErrNoRuns) {
			fmt.Fprintln(stderr, "No runs yet. Start one with: pipegate run")
			return 1
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	if !*brief {
		fmt.Fprintln(stdout, status.Render(st))
	}
	fmt.Fprintln(stdout, status.Summary(st))
	if op.Killed() {
		fmt.Fprintf(stdout, "Kill switch engaged (%s). Release with: pipegate unkill\n", op.Switch().Path())
	}
	return 0
}

func runsCmd(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	limit := fs.Int("n", 20, "Maximum number of runs to list")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	op, _, ok := newOperator(*configFile)
	if !ok {
		return 1
	}

	ids, err := op.ListRuns()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(ids) == 0 {
		fmt.Fprintln(stdout, "No runs yet.")
		return 0
	}
	latest, _ := op.Latest()
	for i, id := range ids {
		if *limit > 0 && i >= *limit {
			break
		}
		st, err := op.Show(id)
		if err != nil {
			fmt.Fprintf(stdout, "%s  unreadable: %v\n", id, err)
			continue
		}
		marker := " "
		if id == latest {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %-24s %-10s %s\n", marker, id, status.PhaseOf(st), st.ProductID())
	}
	return 0
}

func approveCmd(args []string) int {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	by := fs.String("by", "", "Who is approving (default: approval.approver from config)")
	note := fs.String("note", "", "Optional note stored with the approval")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Usage: pipegate approve [-by name] [-note text] [run_id]\nWithout run_id the newest run blocked at the approval gate is approved.")
		return 1
	}
	op, cfg, ok := newOperator(*configFile)
	if !ok {
		return 1
	}

	runID := fs.Arg(0)
	if runID == "" {
		id, err := op.PendingApproval()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		runID = id
	}
	approver := strings.TrimSpace(*by)
	if approver == "" {
		approver = cfg.Approval.Approver
	}

	rec, err := op.Approve(runID, approver, *note)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to approve %s: %v\n", runID, err)
		return 1
	}
	fmt.Fprintf(stdout, "Approved run %s by %s at %s\n", rec.RunID, rec.ApprovedBy, rec.ApprovedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(stdout, "Re-run to generate the bundle: pipegate run")
	return 0
}

func killCmd(args []string) int {
	fs := flag.NewFlagSet("kill", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	reason := fs.String("reason", "", "Why the kill switch is engaged")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	op, _, ok := newOperator(*configFile)
	if !ok {
		return 1
	}
	if err := op.Kill(*reason); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "Kill switch engaged: %s\n", op.Switch().Path())
	return 0
}

func unkillCmd(args []string) int {
	fs := flag.NewFlagSet("unkill", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	op, _, ok := newOperator(*configFile)
	if !ok {
		return 1
	}
	if err := op.Unkill(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, "Kill switch released.")
	return 0
}

func initCmd(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	out := fs.String("config", config.DefaultFileName, "Where to write the config")
	query := fs.String("query", "", "Hacker News search query")
	force := fs.Bool("force", false, "Overwrite an existing config")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(stderr, "%s already exists (use -force to overwrite)\n", *out)
		return 1
	}
	data, err := config.RenderTemplate(config.TemplateData{Query: *query})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to render config: %v\n", err)
		return 1
	}
	if _, err := config.Parse(data); err != nil {
		fmt.Fprintf(stderr, "Rendered config does not parse: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Failed to write %s: %v\n", *out, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *out)
	fmt.Fprintln(stdout, "\nNext steps:")
	fmt.Fprintln(stdout, "  pipegate run")
	return 0
}
