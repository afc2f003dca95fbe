package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/athapong/kgraph-mcp/pkg/graph"
	"github.com/athapong/kgraph-mcp/pkg/graph/metrics"
	"github.com/athapong/kgraph-mcp/services"
	"github.com/athapong/kgraph-mcp/util"
)

// RegisterKnowledgeTools registers the knowledge-graph tools: ingestion,
// entity lookup, and graph statistics.
func RegisterKnowledgeTools(s *server.MCPServer) {
	saveTool := mcp.NewTool("save_knowledge_graph",
		mcp.WithDescription("Ingests extracted entities and relationships into the knowledge graph. "+
			"Idempotently merges nodes and relationships and records which source document asserted them. "+
			"Use this AFTER gathering information."),
		mcp.WithString("update",
			mcp.Required(),
			mcp.Description(`JSON object: {"source_url": string, "entities": [{"name", "label", "properties"}], "relationships": [{"source", "target", "type", "properties"}]}. Labels should be Person, Organization, Location or Topic.`),
		),
	)
	s.AddTool(saveTool, util.ErrorGuard(saveKnowledgeGraphHandler))

	lookupTool := mcp.NewTool("lookup_entity",
		mcp.WithDescription("Checks whether an entity is already present in the knowledge graph, "+
			"matching near-duplicate spellings as well. Use this before asserting new facts about an entity."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Entity name to look up"),
		),
		mcp.WithString("label",
			mcp.Description("Entity label to search under (Person, Organization, Location, Topic); defaults to Organization"),
		),
	)
	s.AddTool(lookupTool, util.ErrorGuard(lookupEntityHandler))

	statsTool := mcp.NewTool("graph_stats",
		mcp.WithDescription("Returns node and edge counts of the knowledge graph, grouped by label and relationship type."),
	)
	s.AddTool(statsTool, util.ErrorGuard(graphStatsHandler))
}

func saveKnowledgeGraphHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	update, err := parseUpdate(request.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, services.IngestTimeout())
	defer cancel()

	result, err := services.DefaultIngestEngine().Ingest(ctx, update)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Ingested %d entities and %d relationships from %s",
		result.EntitiesProcessed, result.RelationshipsLinked, result.SourceURL,
	)), nil
}

// parseUpdate accepts the update either as a JSON string under "update" or
// as the tool arguments themselves carrying source_url/entities/relationships
// directly. Agents produce both shapes.
func parseUpdate(arguments map[string]interface{}) (graph.KnowledgeGraphUpdate, error) {
	var update graph.KnowledgeGraphUpdate

	var raw []byte
	if payload, ok := arguments["update"].(string); ok && payload != "" {
		raw = []byte(payload)
	} else if _, ok := arguments["source_url"]; ok {
		encoded, err := json.Marshal(arguments)
		if err != nil {
			return update, errors.Wrap(err, "re-encode arguments")
		}
		raw = encoded
	} else {
		return update, errors.New("update must be a JSON string or inline object with source_url")
	}

	if err := json.Unmarshal(raw, &update); err != nil {
		return update, errors.Wrap(err, "parse knowledge graph update")
	}
	if update.SourceURL == "" {
		return update, errors.New("source_url is required")
	}
	return update, nil
}

func lookupEntityHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := util.StringArg(request.Params.Arguments, "name")
	if name == "" {
		return mcp.NewToolResultError("name must be a non-empty string"), nil
	}
	label := util.StringArg(request.Params.Arguments, "label")
	if label == "" {
		label = "Organization"
	}

	ctx, cancel := context.WithTimeout(ctx, services.IngestTimeout())
	defer cancel()

	canonical, err := services.DefaultResolver().Resolve(ctx, name, label)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	if canonical != name {
		return mcp.NewToolResultText(fmt.Sprintf("Found existing entity: %s", canonical)), nil
	}

	// Resolve returns the input unchanged both for exact hits and misses;
	// distinguish them so the caller gets a useful answer.
	if _, found, err := services.DefaultGraphStore().FindExactNode(ctx, label, name); err == nil && found {
		return mcp.NewToolResultText(fmt.Sprintf("Found existing entity: %s", name)), nil
	}
	return mcp.NewToolResultText("No exact match found."), nil
}

func graphStatsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, services.IngestTimeout())
	defer cancel()

	stats, err := services.DefaultGraphStore().Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats query failed: %v", err)), nil
	}

	for label, count := range stats.Nodes {
		metrics.GraphNodeCount.WithLabelValues(label).Set(float64(count))
	}
	for relType, count := range stats.Edges {
		metrics.GraphEdgeCount.WithLabelValues(relType).Set(float64(count))
	}

	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
