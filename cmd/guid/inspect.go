package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sxyafiq/guid"
	"github.com/sxyafiq/guid/internal/server"
)

func newInspectCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "inspect <id>...",
		Aliases: []string{"parse", "p"},
		Short:   "Decode identifiers of any shape",
		Long:    "Decode identifiers in hex, base32, base64 or ARK form. The shape is detected from the text.",
		Example: `  guid inspect aeaaaaaaaaaaaaaaecxac3a6ehgayaaaae
  guid inspect --json ark:/10/aiaaabaaagahepcz6ryzyqa`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var (
				infos   []server.IDInfo
				invalid int
			)
			for i, text := range args {
				id, err := guid.ParseAny(text)
				if err != nil {
					invalid++
					fmt.Fprintf(out, "INVALID: %s\n  Error: %v\n", text, err)
					continue
				}
				if jsonOut {
					infos = append(infos, server.Describe(id))
					continue
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				printIdentifier(out, id)
			}

			if jsonOut && len(infos) > 0 {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(infos); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d identifiers invalid", invalid, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func printIdentifier(w io.Writer, id guid.Identifier) {
	ts := time.UnixMilli(id.Timestamp()).UTC()

	fmt.Fprintf(w, "%s: %s\n", shapeTitle(id), id)
	fmt.Fprintf(w, "\nComponents:\n")
	fmt.Fprintf(w, "  Version:    %d\n", id.Version())
	if f, ok := id.(guid.FactoryGUID); ok {
		fmt.Fprintf(w, "  Layout:     %s\n", f.Layout())
	}
	fmt.Fprintf(w, "  Tenant:     %d\n", id.TenantID())
	fmt.Fprintf(w, "  Platform:   %d (%#x)\n", id.PlatformID(), id.PlatformID())
	fmt.Fprintf(w, "  Timestamp:  %s (%d ms since epoch)\n", ts.Format(time.RFC3339Nano), id.Timestamp())
	fmt.Fprintf(w, "  Counter:    %d\n", id.Counter())
	fmt.Fprintf(w, "\nEncodings:\n")
	fmt.Fprintf(w, "  Hex:        %s\n", id.Hex())
	fmt.Fprintf(w, "  Base32:     %s\n", id.Base32())
	fmt.Fprintf(w, "  Base64:     %s\n", id.Base64())
	fmt.Fprintf(w, "  Ark:        %s\n", id.Ark())
	fmt.Fprintf(w, "\nAge:          %v\n", time.Since(ts).Round(time.Millisecond))
}

func shapeTitle(id guid.Identifier) string {
	switch server.ShapeOf(id) {
	case server.ShapeGUID:
		return "GUID"
	case server.ShapeTiny:
		return "TinyGUID"
	}
	return "FactoryGUID"
}

func newConvertCmd(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:     "convert <id>",
		Aliases: []string{"encode", "enc"},
		Short:   "Re-encode an identifier",
		Example: `  guid convert aeaaaaaaaaaaaaaaecxac3a6ehgayaaaae --to hex
  guid convert 02000a000004000180723c59f4719c40 --to ark`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guid.ParseAny(args[0])
			if err != nil {
				return err
			}
			text, err := server.Render(id, to)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "base32", "Target encoding: hex|base32|base64|base64-padded|base64url|base64url-padded|ark")
	return cmd
}
