package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skyfleet/orchestrator/internal/domain"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit and manage runs",
	}
	cmd.AddCommand(newRunSubmitCommand())
	cmd.AddCommand(newRunPlanCommand())
	cmd.AddCommand(newRunListCommand())
	cmd.AddCommand(newRunGetCommand())
	cmd.AddCommand(newRunStopCommand())
	cmd.AddCommand(newRunDeleteCommand())
	return cmd
}

func readRunSpec(path string) (domain.RunSpec, error) {
	var spec domain.RunSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read spec file: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse spec file: %w", err)
	}
	return spec, nil
}

func newRunSubmitCommand() *cobra.Command {
	var (
		specFile string
		repoID   string
		userID   string
		sshKey   string
		runName  string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new run from a JSON run-spec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readRunSpec(specFile)
			if err != nil {
				return err
			}
			req := map[string]any{
				"repo_id":      repoID,
				"user_id":      userID,
				"user_ssh_key": sshKey,
				"run_spec":     spec,
			}
			if runName != "" {
				req["run_name"] = runName
			}
			var out domain.Run
			if err := newAPIClient().post("/runs/submit", req, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&specFile, "spec-file", "", "path to a JSON run-spec file (required)")
	cmd.Flags().StringVar(&repoID, "repo-id", "", "repository identifier")
	cmd.Flags().StringVar(&userID, "user-id", "", "submitting user identifier")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "user SSH public key")
	cmd.Flags().StringVar(&runName, "run-name", "", "explicit run name (auto-generated if omitted)")
	cmd.MarkFlagRequired("spec-file")
	return cmd
}

func newRunPlanCommand() *cobra.Command {
	var specFile string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the offer plan for a run-spec without submitting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readRunSpec(specFile)
			if err != nil {
				return err
			}
			var out domain.RunPlan
			if err := newAPIClient().post("/runs/get_plan", map[string]any{"run_spec": spec}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&specFile, "spec-file", "", "path to a JSON run-spec file (required)")
	cmd.MarkFlagRequired("spec-file")
	return cmd
}

func newRunListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []*domain.Run
			if err := newAPIClient().post("/runs/list", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newRunGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [run-name]",
		Short: "Fetch a run by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out domain.Run
			if err := newAPIClient().post("/runs/get", map[string]any{"run_name": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	return cmd
}

func newRunStopCommand() *cobra.Command {
	var abort bool
	cmd := &cobra.Command{
		Use:   "stop [run-name...]",
		Short: "Stop one or more runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"run_names": args, "abort": abort}
			return newAPIClient().post("/runs/stop", req, nil)
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abort immediately instead of a graceful stop")
	return cmd
}

func newRunDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run-name...]",
		Short: "Delete one or more finished runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().post("/runs/delete", map[string]any{"run_names": args}, nil)
		},
	}
}
