// Package fallsearch embeds the fallsearch fallback search engine in a Go program.
//
// Records live in memory (seeded from YAML fixtures) or in Valkey/Redis. A
// query is matched as a case-insensitive substring over every text field of
// every record type; when nothing matches, an optional Rewriter (for example
// an LLM translator) rewrites the query and the search is retried once.
//
//	client, _ := fallsearch.New(ctx,
//	    fallsearch.WithFixturesFile("config/fixtures.yaml"),
//	    fallsearch.WithRewriter(fallsearch.OpenAIRewriter(apiKey, "", "")),
//	)
//	res, _ := client.Search(ctx, "ржавчина")
//
// Structured queries are built from nodes and flattened before matching:
//
//	res, _ := client.SearchTree(ctx, fallsearch.And(
//	    fallsearch.Field("title", "rust"),
//	    fallsearch.Clean("ownership!"),
//	))
package fallsearch
