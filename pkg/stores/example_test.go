package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/flowcanvas/flowcanvas/pkg/stores"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            stores.MemoryPath,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_LatestDraft demonstrates autosaving and restoring a canvas.
func ExampleSQLiteStore_LatestDraft() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	draft, err := stores.NewDraft("wf-42", "support triage", &workflow.Definition{
		Nodes: []workflow.NodeDefinition{{ID: "in", NodeType: "InputNode"}},
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := store.SaveDraft(ctx, draft); err != nil {
		log.Fatal(err)
	}

	latest, err := store.LatestDraft(ctx, "wf-42")
	if err != nil {
		log.Fatal(err)
	}
	def, err := latest.Decode()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %d node(s)\n", latest.ProjectName, len(def.Nodes))
	// Output: support triage: 1 node(s)
}
