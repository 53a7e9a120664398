package main

import (
	"github.com/spf13/cobra"

	"github.com/skyfleet/orchestrator/internal/domain"
)

func newPoolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage instance pools",
	}
	cmd.AddCommand(newPoolListCommand())
	cmd.AddCommand(newPoolCreateCommand())
	cmd.AddCommand(newPoolDeleteCommand())
	cmd.AddCommand(newPoolShowCommand())
	cmd.AddCommand(newPoolRemoveCommand())
	cmd.AddCommand(newPoolSetDefaultCommand())
	cmd.AddCommand(newPoolAddRemoteCommand())
	return cmd
}

func newPoolListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pools in the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []*domain.Pool
			if err := newAPIClient().post("/pool/list", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newPoolCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a pool, or return it if it already exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out domain.Pool
			if err := newAPIClient().post("/pool/create", map[string]any{"name": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newPoolDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().post("/pool/delete", map[string]any{"name": args[0]}, nil)
		},
	}
}

func newPoolShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a pool and its instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := newAPIClient().post("/pool/show", map[string]any{"name": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newPoolRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [pool-name] [instance-id]",
		Short: "Evict one instance from a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"name": args[0], "instance_id": args[1]}
			return newAPIClient().post("/pool/remove", req, nil)
		},
	}
}

func newPoolSetDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default [name]",
		Short: "Mark a pool as the project's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().post("/pool/set-default", map[string]any{"name": args[0]}, nil)
		},
	}
}

func newPoolAddRemoteCommand() *cobra.Command {
	var (
		poolName string
		hostname string
		sshPort  int
		username string
	)
	cmd := &cobra.Command{
		Use:   "add-remote",
		Short: "Register an externally-provisioned machine as an idle pool instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"name":     poolName,
				"hostname": hostname,
				"ssh_port": sshPort,
				"username": username,
			}
			var out domain.Instance
			if err := newAPIClient().post("/pool/add_remote", req, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&poolName, "pool", "", "target pool name (created if absent)")
	cmd.Flags().StringVar(&hostname, "hostname", "", "SSH hostname or IP (required)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&username, "username", "", "SSH username")
	cmd.MarkFlagRequired("hostname")
	return cmd
}
