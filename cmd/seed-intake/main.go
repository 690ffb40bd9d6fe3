package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/docsynth/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	intakeInstance *services.SeedIntakeFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("SubmitSeed", submitSeed)
}

// main is required by the Go Functions Framework.
func main() {}

// submitSeed is the Cloud Function entry point for GCS object-finalize events.
func submitSeed(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		intakeInstance, initErr = services.NewSeedIntake(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs its own failures with context.
	return intakeInstance.Process(ctx, gcsEvent)
}
