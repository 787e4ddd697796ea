package client

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rzbill/triage/internal/item"
)

// NewItemCommand constructs the `item` command group and subcommands.
func NewItemCommand(baseURL BaseURLFunc) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Work item operations",
		Long: `Work item operations for the triage queue.

Item Lifecycle:
  Unassigned → [claim] → Claimed → [activate] → Active → [resolve] → Resolved
       ↑__________[release]__________↵

Commands:
  create      Register a new customer conversation
  get         Show one item
  list        List claimable items in assignment order
  stats       Show queue statistics
  claim       Reserve an item for this agent
  activate    Start working a claimed item
  release     Hand an item back to the queue
  resolve     Finish an active item

Agent identity comes from TRIAGE_AGENT_ID and TRIAGE_AGENT_NAME.`,
	}

	itemCmd.AddCommand(
		newItemCreateCommand(baseURL),
		newItemGetCommand(baseURL),
		newItemListCommand(baseURL),
		newItemStatsCommand(baseURL),
		newItemClaimCommand(baseURL),
		newItemActivateCommand(baseURL),
		newItemReleaseCommand(baseURL),
		newItemResolveCommand(baseURL),
	)
	return itemCmd
}

func newItemCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new customer conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			customer, _ := cmd.Flags().GetString("customer")
			var w item.WorkItem
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL()+"/v1/items/create",
				map[string]string{"customerName": customer}, &w); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		},
	}
	createCmd.Flags().StringP("customer", "c", "", "Customer name")
	_ = createCmd.MarkFlagRequired("customer")
	return createCmd
}

func newItemGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w item.WorkItem
			if err := doJSON(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/items/get?id="+args[0], nil, &w); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		},
	}
	return getCmd
}

func newItemListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List claimable items in assignment order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Items []item.WorkItem `json:"items"`
			}
			if err := doJSON(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/items/claimable", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out.Items)
		},
	}
	return listCmd
}

func newItemStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]any
			if err := doJSON(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/items/stats", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	return statsCmd
}

// lifecycleCommand builds one POST-with-id command; claim, activate,
// and release all share this shape.
func lifecycleCommand(baseURL BaseURLFunc, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w item.WorkItem
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL()+path,
				map[string]string{"id": args[0]}, &w); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		},
	}
}

func newItemClaimCommand(baseURL BaseURLFunc) *cobra.Command {
	return lifecycleCommand(baseURL, "claim", "Reserve an item for this agent", "/v1/items/claim")
}

func newItemActivateCommand(baseURL BaseURLFunc) *cobra.Command {
	return lifecycleCommand(baseURL, "activate", "Start working a claimed item", "/v1/items/activate")
}

func newItemReleaseCommand(baseURL BaseURLFunc) *cobra.Command {
	return lifecycleCommand(baseURL, "release", "Hand an item back to the queue", "/v1/items/release")
}

func newItemResolveCommand(baseURL BaseURLFunc) *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Finish an active item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problem, _ := cmd.Flags().GetString("problem")
			solution, _ := cmd.Flags().GetString("solution")
			summary, _ := cmd.Flags().GetString("summary")
			var w item.WorkItem
			if err := doJSON(cmd.Context(), http.MethodPost, baseURL()+"/v1/items/resolve",
				map[string]string{
					"id":       args[0],
					"problem":  problem,
					"solution": solution,
					"summary":  summary,
				}, &w); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), w)
		},
	}
	resolveCmd.Flags().String("problem", "", "Problem the customer reported")
	resolveCmd.Flags().String("solution", "", "Solution given to the customer")
	resolveCmd.Flags().String("summary", "", "Short resolution summary")
	return resolveCmd
}
