// Package librarian embeds semantic book and manga retrieval and grounded
// question answering in a Go program, without running the HTTP server.
//
// The caller brings the embedding and chat models; the document store is
// MongoDB, Redis, Valkey or PostgreSQL with pgvector.
//
//	client, _ := librarian.New(ctx,
//	    librarian.WithMongo(os.Getenv("MONGO_URI"), "library", "books"),
//	    librarian.WithEmbedder(myEmbedder, "all-minilm", 384),
//	    librarian.WithChatModel(myChat),
//	)
//	defer client.Close(ctx)
//
//	_, _ = client.Index(ctx, false)
//	hits, _ := client.Search(ctx, "a surgeon hunts a killer", 5)
//	answer, _ := client.Ask(ctx, "Which manga is about a surgeon chasing a killer?", 5)
//
// Search ranks an in-memory snapshot by exact cosine similarity by default;
// WithStrategy(StrategyServer) delegates ranking to the store's vector index.
package librarian
