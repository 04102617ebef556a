package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/papergraph/internal/core"
)

var queryTypes = []string{"papers", "improvements", "concepts", "datasets", "metrics", "similar", "search", "ask", "clusters"}

var (
	errPaperIDRequired = errors.New("--paper-id is required for this query")
	errQueryRequired   = errors.New("--query is required for this query")
)

func (a *app) queryCmd() *cobra.Command {
	var (
		paperID string
		query   string
		output  string
		k       int
	)

	cmd := &cobra.Command{
		Use:       "query <" + strings.Join(queryTypes, "|") + ">",
		Short:     "Query the knowledge graph",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: queryTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			switch kind {
			case "improvements", "concepts", "datasets", "metrics", "similar":
				if paperID == "" {
					return errPaperIDRequired
				}
			case "search", "ask":
				if strings.TrimSpace(query) == "" {
					return errQueryRequired
				}
			}

			return a.withGraph(cmd, func(ctx context.Context, g *core.PaperGraph) error {
				result, err := a.runQuery(ctx, g, kind, paperID, query, k)
				if err != nil {
					return err
				}
				if output != "" {
					return a.writeJSON(output, result)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&paperID, "paper-id", "", "paper node id")
	cmd.Flags().StringVar(&query, "query", "", "search text or natural language question")
	cmd.Flags().StringVar(&output, "output", "", "also write the results as JSON to this file")
	cmd.Flags().IntVar(&k, "k", 10, "number of search results")
	return cmd
}

// runQuery prints a human-readable listing and returns the raw result.
func (a *app) runQuery(ctx context.Context, g *core.PaperGraph, kind, paperID, query string, k int) (any, error) {
	switch kind {
	case "papers":
		papers, err := g.ListPapers(ctx)
		if err != nil {
			return nil, err
		}
		a.printf("\nFound %d papers:\n", len(papers))
		for _, p := range papers {
			year := "N/A"
			if p.Metadata != nil && p.Metadata.Year > 0 {
				year = fmt.Sprint(p.Metadata.Year)
			}
			a.printf("  - %s (%s)\n    ID: %s\n", p.Title, year, p.ID)
		}
		return papers, nil

	case "improvements", "similar":
		fetch := g.Improvements
		header := "papers that improve on this paper"
		if kind == "similar" {
			fetch = g.Similar
			header = "papers similar to this paper"
		}
		related, err := fetch(ctx, paperID)
		if err != nil {
			return nil, err
		}
		a.printf("\nFound %d %s:\n", len(related), header)
		for _, r := range related {
			a.printf("  - %s\n    ID: %s\n    Confidence: %.2f\n", r.Title, r.ID, r.Confidence)
			if r.Rationale != "" {
				a.printf("    Rationale: %s\n", r.Rationale)
			}
		}
		return related, nil

	case "concepts", "datasets", "metrics":
		fetch := map[string]func(context.Context, string) ([]core.RelatedEntity, error){
			"concepts": g.Concepts,
			"datasets": g.Datasets,
			"metrics":  g.Metrics,
		}[kind]
		entities, err := fetch(ctx, paperID)
		if err != nil {
			return nil, err
		}
		a.printf("\nFound %d %s of this paper:\n", len(entities), kind)
		for _, e := range entities {
			a.printf("  - %s\n", e.Label)
			if e.Description != "" {
				a.printf("    %s\n", e.Description)
			}
		}
		return entities, nil

	case "search":
		hits, err := g.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}
		a.printf("\nFound %d papers:\n", len(hits))
		for _, h := range hits {
			a.printf("  - %s (%.3f)\n    ID: %s\n", h.Title(), h.Score, h.Node.ID)
		}
		return hits, nil

	case "ask":
		answer, err := g.Ask(ctx, query)
		if err != nil {
			return nil, err
		}
		a.printf("%s\n", answer.Text)
		if len(answer.Sources) > 0 {
			a.printf("\nSources:\n")
			for _, h := range answer.Sources {
				a.printf("  - %s\n", h.Title())
			}
		}
		return answer, nil

	case "clusters":
		clusters, err := g.Clusters(ctx)
		if err != nil {
			return nil, err
		}
		a.printf("\nFound %d clusters:\n", len(clusters))
		for _, c := range clusters {
			a.printf("  Cluster %d (%d papers)\n", c.ID, len(c.Papers))
			for _, p := range c.Papers {
				a.printf("    - %s\n", p.Title)
			}
		}
		return clusters, nil
	}
	return nil, fmt.Errorf("unknown query type %q", kind)
}
