package mcp

import "github.com/mark3labs/mcp-go/mcp"

var retrievePassagesTool = mcp.NewTool("retrieve_passages",
	mcp.WithDescription("Retrieve passages from the lunar geology and crater-impact corpus. Returns up to five chunks with their source file, section and a confidence score."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language question, misspellings allowed"),
	),
	mcp.WithString("references",
		mcp.Description("Comma-separated terms that matching passages should contain, e.g. section titles or keywords. When omitted the query is interpreted to find them."),
	),
)

var interpretQueryTool = mcp.NewTool("interpret_query",
	mcp.WithDescription("Correct a noisy query and extract its intent and reference terms without retrieving."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Raw user query"),
	),
)
