// Package vecrank embeds the vecrank embedding, ranking and captioning
// pipeline in a Go program without running the HTTP service.
//
// # Ranking with the local lexical backend
//
//	client, _ := vecrank.New(ctx, vecrank.WithLexical(512))
//	defer client.Close()
//
//	results, _ := client.Rank(ctx, "black leather wallet", []vecrank.Item{
//	    {ID: "1", Title: "Wallet", Description: "black leather, found near gate 4"},
//	    {ID: "2", Title: "Umbrella", Description: "red, folding"},
//	}, vecrank.RankOptions{})
//
// # Remote providers
//
//	client, _ := vecrank.New(ctx,
//	    vecrank.WithOpenAI(apiKey, "https://generativelanguage.googleapis.com/v1beta/openai/", "text-embedding-004"),
//	    vecrank.WithHuggingFace(hfToken, ""),
//	    vecrank.WithCache("localhost:6379", "", 24*time.Hour),
//	    vecrank.WithConcurrency(6, 8),
//	)
//
// Items without a usable vector are embedded concurrently under a bounded
// fanout. An item whose embedding fails is still ranked, with a zero vector
// and similarity 0, and is reported with SourceFallback.
package vecrank
