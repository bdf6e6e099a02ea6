// Package graphrag builds knowledge graphs from extractor tuple streams and
// answers global questions over them with a distributed map-reduce query.
//
// The pipeline has three stages. Ingestion parses entity and relationship
// tuples and merges them into a document-store graph with symmetric
// adjacency sets. Community detection stabilizes the graph into a
// deterministic view and clusters it with hierarchical Leiden, then each
// community gets an LLM-generated report. Querying fans every community out
// over a message bus to stateless workers, collects scored partial answers
// at a rendezvous store and reduces the best of them into one synthesized
// response.
//
// # Basic Usage
//
// Wire a client from explicit components:
//
//	docs := docstore.NewMemoryStore()
//	graph := kgraph.NewStore(docs, nil)
//	model, _ := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: apiKey}, nil)
//
//	client, err := graphrag.NewClient(graphrag.Components{
//		Graph:      graph,
//		Bus:        bus.NewMemoryBus(nil),
//		Rendezvous: rendezvous.NewStore(docs, ""),
//		LLM:        model,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Ingest(ctx, stream, "doc-1")
//	client.BuildCommunities(ctx)
//	client.GenerateReports(ctx)
//	answer, err := client.Answer(ctx, "What does the corpus say about X?")
//
// Production deployments use NewFromConfig, which selects the Badger, memory
// or Neo4j graph backend and the NATS or in-process bus from configuration.
package graphrag
