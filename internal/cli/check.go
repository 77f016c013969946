package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"looperd/internal/app"
)

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the EEPROM layout and initial queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := app.Check(*cfgPath)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
}

func printReport(w io.Writer, rep *app.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "eeprom\tdriver=%s\tused=%d\tversion=%#x\n", rep.Config.EEPROM.Driver, rep.Layout.Size, rep.Layout.Version)
	fmt.Fprintln(tw, "OFFSET\tITEM\tKIND\tLENGTH\tCACHED")
	for _, it := range rep.Layout.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%v\n", it.Offset, it.Name, it.Kind, it.Length, it.Cached)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "loopers\ttick=%s\n", rep.Tick)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tFIRST DUE\tQUEUE POS")
	for _, l := range rep.Loopers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", l.ID, l.Name, l.State, l.NextDue, l.Position)
	}
	return tw.Flush()
}
