package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/navigate"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address>...",
		Short: "Resolve .asn addresses to URLs",
		Long: `Resolve each address and print "<address>\t<url>".

Addresses without the .asn suffix get it appended, so "hello/about" and
"hello.asn/about" are equivalent. The command exits non-zero when any address
is unknown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newBackend()
			if err != nil {
				return err
			}

			failed := false
			for _, address := range args {
				target, err := r.Resolve(cmd.Context(), address)
				switch {
				case errors.Is(err, domain.ErrDomainNotFound), errors.Is(err, domain.ErrInvalidAddress):
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", address, err)
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", address, target)
				}
			}
			if failed {
				return errUnresolved
			}
			return nil
		},
	}
}

func newNavigateCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "navigate [address]",
		Short: "Show where the browser would navigate for an address",
		Long: `Classify address-bar input the way the browser does: .asn pseudo-domains
are resolved, bare hosts get https://, anything else becomes a search.
Without an argument the home address is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.newBackend()
			if err != nil {
				return err
			}

			address := navigate.HomeAddress
			if len(args) == 1 {
				address = args[0]
			}

			target, err := navigate.New(r, a.logger).Navigate(cmd.Context(), address)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(target); err != nil {
					return err
				}
			} else if !target.NotFound {
				fmt.Fprintf(out, "%s\n", target.URL)
			}

			if target.NotFound {
				fmt.Fprintf(cmd.ErrOrStderr(), "The .asn domain %q could not be resolved.\n", address)
				return errUnresolved
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full navigation target as JSON")
	return cmd
}
