package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/stores"
)

// ExampleJournal_Recorder records the outcomes of a run and reads them back.
func ExampleJournal_Recorder() {
	ctx := context.Background()

	journal, err := stores.Open(ctx, stores.Config{Path: ":memory:"}, zerolog.Nop())
	if err != nil {
		log.Fatal(err)
	}
	defer journal.Close()

	run, err := journal.StartRun(ctx, "akinizer.yaml", []string{"default"})
	if err != nil {
		log.Fatal(err)
	}

	rec := journal.Recorder(run.ID)
	rec.UnitFinished(ctx, engine.Report{
		Unit:    "base:git",
		Target:  engine.Target{Name: "git", Action: engine.ActionInstall},
		Outcome: engine.OutcomeInstalled,
	})

	if err := journal.FinishRun(ctx, run.ID, stores.RunStatusSucceeded, nil); err != nil {
		log.Fatal(err)
	}

	results, _ := journal.ListResults(ctx, run.ID)
	for _, r := range results {
		fmt.Println(r.Unit, r.Outcome)
	}
	// Output: base:git installed
}
