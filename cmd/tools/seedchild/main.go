// Command seedchild registers or updates a child profile directly in the
// database. Account management lives in another service; this tool keeps
// local development and manual testing possible without it.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/kidia/backend/internal/store"
)

func main() {
	dbPath := flag.String("db", "data/kidia.db", "path to the SQLite database")
	childID := flag.String("id", "", "child id (required)")
	parentID := flag.String("parent", "", "parent id (required)")
	name := flag.String("name", "", "child display name (required)")
	age := flag.Int("age", 0, "child age (optional)")
	flag.Parse()

	if *childID == "" || *parentID == "" || *name == "" {
		flag.Usage()
		log.Fatal("id, parent and name are required")
	}

	st, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	profile := store.ChildProfile{
		ID:       *childID,
		ParentID: *parentID,
		Name:     *name,
	}
	if *age > 0 {
		profile.Age = age
	}

	if err := st.UpsertChild(context.Background(), profile); err != nil {
		log.Fatalf("upsert child: %v", err)
	}
	log.Printf("child %s registered for parent %s", *childID, *parentID)
}
