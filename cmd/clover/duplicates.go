package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/server"
)

func newDuplicatesCmd(root *rootOptions) *cobra.Command {
	var (
		tenantID  string
		leadID    string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Report duplicate leads for a tenant or a single lead",
		Example: `  clover duplicates --tenant acme
  clover duplicates --tenant acme --lead 7f3c --threshold 0.9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *server.App) error {
				t := threshold
				if !cmd.Flags().Changed("threshold") {
					t = app.Engine.DefaultThreshold()
				}
				if err := matching.ValidateThreshold(t); err != nil {
					return err
				}

				if leadID != "" {
					matches, err := app.Engine.FindDuplicatesForLead(ctx, tenantID, leadID, t)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), matches)
				}

				report, err := app.Engine.FindAllDuplicates(ctx, tenantID, t)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to scan")
	cmd.Flags().StringVar(&leadID, "lead", "", "only report duplicates of this lead")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum pair score (defaults to DUPLICATE_THRESHOLD)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newMergeCmd(root *rootOptions) *cobra.Command {
	var (
		tenantID     string
		primaryID    string
		duplicateIDs []string
		strategy     string
		performedBy  string
	)

	cmd := &cobra.Command{
		Use:     "merge",
		Short:   "Merge duplicate leads into a primary lead",
		Example: `  clover merge --tenant acme --primary 7f3c --duplicates 91ab,c2d4 --strategy keep-primary`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(duplicateIDs) == 0 {
				return fmt.Errorf("at least one duplicate lead id is required")
			}
			return root.withApp(cmd, func(ctx context.Context, app *server.App) error {
				result, err := app.Executor.MergeLeads(ctx, tenantID, primaryID, duplicateIDs,
					models.ParseMergeStrategy(strategy), performedBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant owning the leads")
	cmd.Flags().StringVar(&primaryID, "primary", "", "lead that survives the merge")
	cmd.Flags().StringSliceVar(&duplicateIDs, "duplicates", nil, "leads merged into the primary")
	cmd.Flags().StringVar(&strategy, "strategy", string(models.DefaultMergeStrategy), "keep-primary, keep-newest or keep-most-complete")
	cmd.Flags().StringVar(&performedBy, "performed-by", "cli", "recorded in the merge audit")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("primary")
	return cmd
}

func newAutoMergeCmd(root *rootOptions) *cobra.Command {
	var (
		tenantID    string
		all         bool
		performedBy string
	)

	cmd := &cobra.Command{
		Use:   "automerge",
		Short: "Merge every duplicate group of a tenant",
		Long: `Merges exact-match groups by default. With --all, every detected group is merged,
similar and fuzzy ones included.
Each group is merged into its primary lead using keep-most-complete.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *server.App) error {
				result, err := app.Executor.AutoMergeDuplicates(ctx, tenantID, !all, performedBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to merge")
	cmd.Flags().BoolVar(&all, "all", false, "merge every group, including similar and fuzzy matches")
	cmd.Flags().StringVar(&performedBy, "performed-by", "cli", "recorded in the merge audits")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
