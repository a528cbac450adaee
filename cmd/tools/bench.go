package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/lychee-technology/appforge/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type benchOptions struct {
	specs        int
	maxEntities  int
	maxViews     int
	seed         int64
	seedProvided bool
}

var (
	benchNouns = []string{"task", "project", "contact", "invoice", "note", "event", "order", "ticket", "book", "recipe"}
	benchProps = []string{"title", "status", "due", "owner", "priority", "amount", "notes", "done", "category", "created"}
	benchTypes = []appforge.PropertyType{
		appforge.PropertyTypeString, appforge.PropertyTypeNumber, appforge.PropertyTypeBoolean,
		appforge.PropertyTypeDate, appforge.PropertyTypeEnum,
	}
	benchViews = []appforge.ViewType{appforge.ViewTypeList, appforge.ViewTypeForm, appforge.ViewTypeDetail, appforge.ViewTypeDashboard}
)

func newBenchCmd(root *rootOptions) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Build randomly generated specifications and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedProvided = cmd.Flags().Changed("seed")
			if !opts.seedProvided {
				opts.seed = time.Now().UnixNano()
				zap.S().Infow("using random seed", "seed", opts.seed)
			}
			if opts.specs <= 0 {
				return fmt.Errorf("--specs must be greater than 0")
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			compiler, err := factory.NewCompiler(cfg.Build)
			if err != nil {
				return err
			}

			var renderFailures atomic.Int64
			internal.RegisterTelemetryEmitter(func(_ context.Context, name string, _ map[string]string, _ any) {
				if name == "appforge_render_failures" {
					renderFailures.Add(1)
				}
			})
			defer internal.RegisterTelemetryEmitter(nil)

			random := rand.New(rand.NewSource(opts.seed))
			var (
				latencies []time.Duration
				fragments int
				bytes     int
				failed    int
			)
			for i := 0; i < opts.specs; i++ {
				spec := randomSpec(random, i, opts.maxEntities, opts.maxViews)
				start := time.Now()
				result := compiler.Build(spec, compiler.MatchPatterns(spec))
				latencies = append(latencies, time.Since(start))
				if !result.Success {
					failed++
					zap.S().Warnw("generated specification failed to build", "app", spec.Meta.Name, "errors", result.Errors)
					continue
				}
				fragments += result.Manifest.DeltasGenerated
				bytes += len(result.HTML)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Built %d specifications (seed %d, %d failed)\n", opts.specs, opts.seed, failed)
			fmt.Fprintf(out, "  - latency: min %s, p50 %s, p95 %s, max %s\n",
				percentile(latencies, 0), percentile(latencies, 50), percentile(latencies, 95), percentile(latencies, 100))
			if built := opts.specs - failed; built > 0 {
				fmt.Fprintf(out, "  - output: %d fragments, %d bytes per document on average\n", fragments/built, bytes/built)
			}
			fmt.Fprintf(out, "  - render failures: %d\n", renderFailures.Load())
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.specs, "specs", 100, "number of specifications to build")
	cmd.Flags().IntVar(&opts.maxEntities, "max-entities", 4, "upper bound of entities per specification")
	cmd.Flags().IntVar(&opts.maxViews, "max-views", 3, "upper bound of views per entity")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed for reproducible runs")
	return cmd
}

// randomSpec returns a valid specification shaped by r.
func randomSpec(r *rand.Rand, index, maxEntities, maxViews int) *appforge.Specification {
	if maxEntities < 1 {
		maxEntities = 1
	}
	if maxViews < 1 {
		maxViews = 1
	}

	spec := &appforge.Specification{
		Version: "1.0.0",
		Meta:    appforge.SpecMeta{Name: fmt.Sprintf("Bench App %d", index), Description: "Generated for benchmarking"},
	}

	nouns := uniqueSample(r, benchNouns, 1+r.Intn(maxEntities))
	for _, noun := range nouns {
		entity := appforge.Entity{ID: noun, Name: capitalizeWord(noun)}
		for _, prop := range uniqueSample(r, benchProps, 1+r.Intn(len(benchProps))) {
			p := appforge.Property{Name: prop, Type: benchTypes[r.Intn(len(benchTypes))], Required: r.Intn(2) == 0}
			if p.Type == appforge.PropertyTypeEnum {
				p.Options = uniqueSample(r, []string{"low", "medium", "high", "open", "closed"}, 2+r.Intn(3))
			}
			entity.Properties = append(entity.Properties, p)
		}
		spec.Entities = append(spec.Entities, entity)

		views := 1 + r.Intn(maxViews)
		for v := 0; v < views; v++ {
			kind := benchViews[r.Intn(len(benchViews))]
			id := fmt.Sprintf("%s-%s-%d", noun, kind, v)
			spec.Views = append(spec.Views, appforge.View{ID: id, Name: capitalizeWord(string(kind)) + " " + capitalizeWord(noun), Type: kind, Entity: noun})
		}
		spec.Actions = append(spec.Actions, appforge.Action{
			ID:      "add-" + noun,
			Name:    "Add " + noun,
			Trigger: appforge.TriggerFormSubmit,
			Logic:   "create a " + noun,
		})
	}
	spec.Patterns = []string{"view-list", "view-form"}
	return spec
}

// percentile returns the p-th percentile of samples by nearest rank.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func uniqueSample(r *rand.Rand, values []string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	if count >= len(values) {
		return append([]string{}, values...)
	}

	perm := r.Perm(len(values))
	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, values[perm[i]])
	}
	return result
}

func capitalizeWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
