package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/loader"
)

func (a *app) ingestCmd() *cobra.Command {
	var (
		link     bool
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest papers from a JSON, PDF, text or markdown file, or a directory of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no papers found in %s", args[0])
			}

			return a.withGraph(cmd, func(ctx context.Context, g *core.PaperGraph) error {
				if !cmd.Flags().Changed("strategy") {
					strategy = g.Linking.Strategy
				}
				if link {
					if _, err := g.Generator(strategy); err != nil {
						return err
					}
				}

				a.printf("Ingesting %d papers...\n", len(docs))
				batch, err := g.IngestBatch(ctx, docs)
				if err != nil {
					return err
				}

				for i, res := range batch.Results {
					if res == nil {
						a.printf("  x %s: %v\n", docs[i].Source, batch.Errors[i])
						continue
					}
					a.printf("  + %s\n    Entities: %d (%d new), Edges: %d\n", res.Title, res.EntityCount, res.EntitiesCreated, res.EdgesCreated)
					if res.EntityFailures > 0 || res.EdgeFailures > 0 {
						a.printf("    Store failures: %d entities, %d edges\n", res.EntityFailures, res.EdgeFailures)
					}
				}

				totals := batch.Totals
				if link && totals.Ingested > 0 {
					a.printf("\nLinking cross-paper relationships...\n")
					sum, err := g.LinkPapers(ctx, strategy)
					if err != nil {
						return err
					}
					a.printf("  Created %d cross-paper relationships from %d candidate pairs (%d edge failures, %d oracle failures)\n",
						sum.Edges.Created, sum.Pairs, sum.Edges.Failed, sum.OracleFailures)
				}

				a.printf("\nPapers processed: %d\nSuccessfully ingested: %d\nFailed: %d\n", totals.Processed, totals.Ingested, totals.Failed)
				a.printf("Entities created: %d\nEdges created: %d\nEntity failures: %d\nEdge failures: %d\nRelationships dropped: %d\n",
					totals.EntitiesCreated, totals.EdgesCreated, totals.EntityFailures, totals.EdgeFailures, totals.Dropped)
				if totals.Ingested == 0 {
					return fmt.Errorf("no paper could be ingested")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&link, "link", true, "link cross-paper relationships after ingestion (--link=false to skip)")
	cmd.Flags().StringVar(&strategy, "strategy", core.StrategyShared, "candidate strategy: shared or similarity")
	return cmd
}

func (a *app) linkCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Infer cross-paper relationships for the papers already in the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(cmd, func(ctx context.Context, g *core.PaperGraph) error {
				if !cmd.Flags().Changed("strategy") {
					strategy = g.Linking.Strategy
				}
				sum, err := g.LinkPapers(ctx, strategy)
				if err != nil {
					return err
				}
				a.printf("Papers: %d\nCandidate pairs: %d\nEdges created: %d\nEdge failures: %d\nOracle failures: %d\nDuration: %s\n",
					sum.Papers, sum.Pairs, sum.Edges.Created, sum.Edges.Failed, sum.OracleFailures, sum.Duration)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", core.StrategyShared, "candidate strategy: shared or similarity")
	return cmd
}
