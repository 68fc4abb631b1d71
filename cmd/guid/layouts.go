package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sxyafiq/guid"
)

func newLayoutsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List the factory layout presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTENANT\tPLATFORM\tPID\tTIME\tCOUNTER\tBYTES\tHEX\tBASE32\tBASE64\tIDS/MS\tYEARS")
			for _, name := range guid.Layouts() {
				l, err := guid.LayoutByName(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.0f\n",
					name, l.TenantSize, l.PlatformSize, l.PidSize, l.TimeSize, l.CounterSize,
					l.KeySize(), l.Key16Size(), l.Key32Size(), l.Key64Size(), l.MaxCounter()+1, l.Lifespan())
			}
			return tw.Flush()
		},
	}
}
