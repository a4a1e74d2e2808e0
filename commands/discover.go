package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"aethersecure/discovery"

	"github.com/spf13/cobra"
)

var browseInstances = discovery.Browse

func newDiscoverCommand() *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List vault instances advertised on the LAN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := browseInstances(cmd.Context(), discovery.Config{ScanTimeout: timeout})
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(instances)
			}

			if len(instances) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no instances found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL\tVERSION\tSCAN ORDER\tINSTANCE ID")
			for _, instance := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					instance.Name, instance.URL(), strconv.Itoa(instance.Version), instance.ScanOrder, instance.InstanceID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", discovery.DefaultScanTimeout, "How long to listen for answers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
