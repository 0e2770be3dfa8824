package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"maestro/internal/logging"
	"maestro/internal/pipeline"
)

// attach streams a session's output to the terminal and forwards
// terminal lines to the agent. Returns when the agent process exits or
// ctx is cancelled; cancellation stops the session gracefully.
func attach(ctx context.Context, container *Container, sessionID string) error {
	svc := container.SessionService

	records, live, cancel, err := svc.Follow(ctx, sessionID)
	if err != nil {
		return err
	}
	defer cancel()

	projector := pipeline.NewProjector()
	lastSeq := int64(-1)
	for _, rec := range records {
		if text, ok := projector.Render(rec); ok {
			fmt.Println(text)
		}
		lastSeq = rec.Seq
	}

	input := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case input <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nstopping session...")
			if err := svc.Stop(context.Background(), sessionID); err != nil {
				logging.Logger.Warn("Stop on detach failed", "session_id", sessionID, "error", err)
			}
			return nil

		case rec := <-live:
			if rec.Seq <= lastSeq {
				continue // already shown during replay
			}
			lastSeq = rec.Seq
			if text, ok := projector.Render(rec); ok {
				fmt.Println(text)
			}

		case line := <-input:
			if line == "" {
				continue
			}
			if err := svc.Send(ctx, sessionID, line); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			}

		case <-ticker.C:
			if svc.Supervisor().IsRunning(sessionID) {
				continue
			}
			// Process gone; drain what the pipeline already published
			for {
				select {
				case rec := <-live:
					if rec.Seq <= lastSeq {
						continue
					}
					lastSeq = rec.Seq
					if text, ok := projector.Render(rec); ok {
						fmt.Println(text)
					}
				default:
					return nil
				}
			}
		}
	}
}
