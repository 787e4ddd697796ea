package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// NewFeedCommand constructs the `feed` command: tail the live change
// feed over SSE.
func NewFeedCommand(baseURL BaseURLFunc) *cobra.Command {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Tail the live change feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			u := baseURL() + "/v1/feed/sse"
			if filter != "" {
				u += "?filter=" + url.QueryEscape(filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			sc := bufio.NewScanner(resp.Body)
			n := 0
			for sc.Scan() {
				line := sc.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var ev map[string]any
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
					continue
				}
				_ = enc.Encode(ev)
				n++
				if limit > 0 && n >= limit {
					return nil
				}
			}
			return sc.Err()
		},
	}
	feedCmd.Flags().String("filter", "", "CEL filter (server-side)")
	feedCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return feedCmd
}
