package main

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sxyafiq/guid"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		shape   string
		workers int
		count   int
		layout  string
	)

	cmd := &cobra.Command{
		Use:     "bench",
		Aliases: []string{"benchmark", "b"},
		Short:   "Measure minting throughput and check for duplicates",
		Example: `  guid bench
  guid bench --shape factory --layout smallest --workers 16 --count 200000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkShape(shape); err != nil {
				return err
			}
			if workers < 1 || count < 1 {
				return fmt.Errorf("workers (%d) and count (%d) must be positive", workers, count)
			}

			var next func() guid.Identifier
			switch shape {
			case shapeGUID:
				next = func() guid.Identifier { return guid.New() }
			case shapeTiny:
				next = func() guid.Identifier { return guid.NewTiny() }
			case shapeFactory:
				f, err := a.factory(layout, nil)
				if err != nil {
					return err
				}
				next = func() guid.Identifier { return f.New() }
			}

			res := runBench(next, workers, count)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shape:        %s\n", shape)
			fmt.Fprintf(out, "Workers:      %d\n", workers)
			fmt.Fprintf(out, "Generated:    %d IDs\n", res.total)
			fmt.Fprintf(out, "Duration:     %v\n", res.elapsed.Round(time.Microsecond))
			fmt.Fprintf(out, "Rate:         %.0f IDs/sec (%.0f ns/op)\n", res.rate(), res.nsPerOp())
			fmt.Fprintf(out, "Duplicates:   %d\n", res.duplicates)
			if res.duplicates > 0 {
				return fmt.Errorf("%d duplicate identifiers", res.duplicates)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shape, "shape", shapeGUID, "Identifier shape: guid|tiny|factory")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.GOMAXPROCS(0), "Concurrent minting goroutines")
	cmd.Flags().IntVarP(&count, "count", "n", 100_000, "Identifiers per worker")
	cmd.Flags().StringVar(&layout, "layout", "", "Factory layout preset (overrides config)")
	return cmd
}

type benchResult struct {
	total      int
	duplicates int
	elapsed    time.Duration
}

func (r benchResult) rate() float64 {
	return float64(r.total) / r.elapsed.Seconds()
}

func (r benchResult) nsPerOp() float64 {
	return float64(r.elapsed.Nanoseconds()) / float64(r.total)
}

// runBench mints count identifiers on each of workers goroutines, then counts
// repeated raw values across all of them.
func runBench(next func() guid.Identifier, workers, count int) benchResult {
	batches := make([][]string, workers)

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]string, 0, count)
			for i := 0; i < count; i++ {
				batch = append(batch, string(next().Bytes()))
			}
			batches[w] = batch
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	seen := make(map[string]struct{}, workers*count)
	res := benchResult{elapsed: elapsed}
	for _, batch := range batches {
		for _, raw := range batch {
			res.total++
			if _, dup := seen[raw]; dup {
				res.duplicates++
				continue
			}
			seen[raw] = struct{}{}
		}
	}
	return res
}
