package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hustle/internal/catalog"
	"hustle/internal/domain"
)

// NewCatalogCmd groups question catalog tooling.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect Round 2 question catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lint <file>",
		Short: "Validate a catalog file without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, slot := range domain.AptitudeSlots {
				q, _ := c.Aptitude(slot)
				fmt.Fprintf(out, "%-10s %d options\n", slot, len(q.Options))
			}
			for _, kind := range domain.CodingKinds {
				ch, _ := c.Challenge(kind)
				fmt.Fprintf(out, "%-10s %s\n", ch.Slot, kind)
			}
			fmt.Fprintln(out, "catalog ok")
			return nil
		},
	})
	return cmd
}
