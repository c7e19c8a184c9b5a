package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/healthtestai/apicheck/internal/checks"
)

func newChecksCommand() *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List the checks in the suite, in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite := checks.DefaultSuite()
			if extended {
				suite = checks.ExtendedSuite()
			}
			printSuite(cmd.OutOrStdout(), suite)
			return nil
		},
	}
	cmd.Flags().BoolVar(&extended, "extended", false, "Include the extended checks")
	return cmd
}

func printSuite(w io.Writer, suite []checks.Check) {
	nameWidth := runewidth.StringWidth("Check")
	routeWidth := runewidth.StringWidth("Route")
	for _, c := range suite {
		nameWidth = max(nameWidth, runewidth.StringWidth(c.Name))
		routeWidth = max(routeWidth, runewidth.StringWidth(route(c)))
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("#", 3), padRight("Check", nameWidth), padRight("Route", routeWidth), padRight("Expect", 6), "Notes")
	for i, c := range suite {
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(fmt.Sprintf("%d", i+1), 3),
			padRight(c.Name, nameWidth),
			padRight(route(c), routeWidth),
			padRight(fmt.Sprintf("%d", c.Expect), 6),
			notes(c))
	}
}

func route(c checks.Check) string {
	return c.Method + " " + c.Path
}

func notes(c checks.Check) string {
	var parts []string
	if c.IsGate() {
		parts = append(parts, "gate")
	}
	if c.Settle {
		parts = append(parts, "settles first")
	}
	if len(c.Requires) > 0 {
		parts = append(parts, "needs "+strings.Join(c.Requires, ", "))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}
