package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sxyafiq/guid"
	"github.com/sxyafiq/guid/internal/server"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		shape   string
		count   int
		format  string
		tenant  int64
		layout  string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Mint identifiers",
		Example: `  guid generate
  guid generate --shape tiny --count 1000 --format hex
  guid generate --shape factory --layout smallest --tenant 7 --format ark`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkShape(shape); err != nil {
				return err
			}
			if _, err := guid.ParseBase(format); err != nil && format != "ark" {
				return err
			}

			var f *guid.Factory
			if shape == shapeFactory {
				var err error
				if f, err = a.factory(layout, nil); err != nil {
					return err
				}
				if !cmd.Flags().Changed("tenant") {
					tenant = f.TenantID()
				}
			}

			start := time.Now()
			ids, err := mint(cmd.Context(), shape, f, tenant, count)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			a.logger.Debug("minted", zap.String("shape", shape), zap.Int("count", len(ids)), zap.Duration("elapsed", elapsed))

			out := cmd.OutOrStdout()
			if jsonOut {
				infos := make([]server.IDInfo, len(ids))
				for i, id := range ids {
					infos[i] = server.Describe(id)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			for _, id := range ids {
				text, err := server.Render(id, format)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
			}
			if count > 100 {
				rate := float64(len(ids)) / elapsed.Seconds()
				fmt.Fprintf(cmd.ErrOrStderr(), "\nGenerated %d IDs in %v (%.0f IDs/sec)\n", len(ids), elapsed, rate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shape, "shape", shapeGUID, "Identifier shape: guid|tiny|factory")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of identifiers")
	cmd.Flags().StringVar(&format, "format", "base32", "Output encoding: base32|hex|base64|base64url|ark")
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "Tenant id (factory default: config tenant_id)")
	cmd.Flags().StringVar(&layout, "layout", "", "Factory layout preset (overrides config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print decoded details as JSON")
	return cmd
}

// mint produces count identifiers of shape through the batch API.
func mint(ctx context.Context, shape string, f *guid.Factory, tenant int64, count int) ([]guid.Identifier, error) {
	if count < 1 {
		return nil, fmt.Errorf("count %d must be positive", count)
	}
	switch shape {
	case shapeGUID:
		return identifiers(guid.NewBatch(ctx, tenant, count))
	case shapeTiny:
		return identifiers(guid.NewTinyBatch(ctx, tenant, count))
	case shapeFactory:
		return identifiers(f.NewBatch(ctx, tenant, count))
	}
	return nil, checkShape(shape)
}

func identifiers[T guid.Identifier](batch []T, err error) ([]guid.Identifier, error) {
	if err != nil && !errors.Is(err, guid.ErrContextCanceled) {
		return nil, err
	}
	ids := make([]guid.Identifier, len(batch))
	for i, id := range batch {
		ids[i] = id
	}
	return ids, err
}
