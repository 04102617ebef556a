package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/visualize"
)

func (a *app) visualizeCmd() *cobra.Command {
	var (
		output       string
		nodeType     string
		noPhysics    bool
		noEdgeLabels bool
	)
	opts := visualize.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Render the knowledge graph as an interactive HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nodeType != "" {
				t, ok := model.ParseNodeType(nodeType)
				if !ok {
					return fmt.Errorf("invalid --node-type %q", nodeType)
				}
				opts.NodeType = t
			}
			opts.Physics = !noPhysics
			opts.EdgeLabels = !noEdgeLabels

			return a.withGraph(cmd, func(ctx context.Context, g *core.PaperGraph) error {
				graph, err := visualize.WriteFile(ctx, g.Store, output, opts)
				if err != nil {
					return err
				}
				a.printf("Graph visualization saved to: %s (%d nodes, %d edges)\n", output, len(graph.Nodes), len(graph.Edges))
				a.printf("Open this file in your web browser to view the interactive graph.\n")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "graph_visualization.html", "output HTML file path")
	cmd.Flags().StringVar(&nodeType, "node-type", "", "only draw nodes of this type (paper, concept, method, dataset, metric, author, task)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of nodes")
	cmd.Flags().StringVar(&opts.Root, "subgraph", "", "draw the subgraph around this node id")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", opts.MaxDepth, "maximum depth of the subgraph")
	cmd.Flags().BoolVar(&noPhysics, "no-physics", false, "disable the physics simulation")
	cmd.Flags().BoolVar(&noEdgeLabels, "no-edge-labels", false, "hide edge type labels")
	return cmd
}
