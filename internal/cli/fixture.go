package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/wiki-harness/internal/fixture"
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Show the seed fixture",
	Long:  `Print the fixture version and the identities it seeds`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := fixture.Default()
		if err != nil {
			return err
		}
		fixtureVersion, err := f.Version()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "version: %s\n\n", fixtureVersion)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USER\tPASSWORD\tROLE\tID")
		for _, u := range f.Users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Name, u.Password, u.Role, fixture.UserID(u.Name))
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "REPOSITORY\tBRANCH\tOWNER\tID")
		for _, r := range f.Repositories {
			fmt.Fprintf(tw, "%s/%s\t%s\t%s\t%s\n", r.Organization, r.Name, r.Branch, r.Owner, fixture.RepositoryID(r))
		}
		return tw.Flush()
	},
}
