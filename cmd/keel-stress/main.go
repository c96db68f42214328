package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
	"github.com/plus3/keel/harness"
	"github.com/plus3/keel/transport"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	componentCount := flag.Int("components", 1000, "The number of synthetic components to attach.")
	mode := flag.String("mode", "direct", "Session variant to stress: direct or remote.")
	scenarioPath := flag.String("scenario", "", "Optional scenario file to run instead of the synthetic population.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	log.Println("Starting stress test...")

	session, components, err := buildSession(*mode, *scenarioPath, *componentCount)
	if err != nil {
		log.Fatalf("Failed to build session: %v", err)
	}
	defer session.Destroy()

	report := &Report{
		Duration:       *duration,
		Mode:           *mode,
		Components:     components,
		GCPauseMetrics: *gcPauseMetrics,
		FrameTime: Stats{
			Samples: make([]time.Duration, 0),
		},
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running %s session for %s...\n", *mode, *duration)
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	var totalFrames int64
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			stepStart := time.Now()
			_, err := session.StepFrame(context.Background(), deltaTime.Seconds())
			stepDuration := time.Since(stepStart)
			if err != nil {
				log.Fatalf("Frame step failed: %v", err)
			}

			report.FrameTime.Samples = append(report.FrameTime.Samples, stepDuration)
			totalFrames++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.TotalFrames = totalFrames
	report.FrameTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	log.Println("Simulation finished.")

	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")

	log.Println("Stress test complete.")
}

// buildSession assembles the session under test: a scenario's declared
// session when a file was given, otherwise a synthetic population of lerps
// that never terminate plus one painting dot per canvas.
func buildSession(mode, scenarioPath string, componentCount int) (transport.Session, int, error) {
	if scenarioPath != "" {
		s, err := harness.LoadScenario(scenarioPath)
		if err != nil {
			return nil, 0, err
		}
		if mode != "direct" {
			s.Mode = mode
		}
		session, err := s.NewSession()
		if err != nil {
			return nil, 0, err
		}
		return session, len(s.Components), nil
	}

	var session transport.Session
	switch mode {
	case "direct":
		session = transport.NewDirect(engine.Options{})
	case "remote":
		session = transport.NewRemote(transport.RemoteConfig{})
	default:
		return nil, 0, fmt.Errorf("unknown mode %q", mode)
	}

	if err := session.SetCanvas("main", canvas.New(256, 256)); err != nil {
		session.Destroy()
		return nil, 0, err
	}

	for i := 0; i < componentCount; i++ {
		spec := engine.ComponentSpec{
			Name: fmt.Sprintf("lerp-%04d", i),
			Kind: "lerp",
			Lerp: &engine.LerpSpec{
				From: rand.Float64() * 1000,
				// An unreachable target keeps every component busy all run.
				Target: 1e18,
				Speed:  rand.Float64()*100 + 1,
			},
		}
		if err := session.Attach(spec); err != nil {
			session.Destroy()
			return nil, 0, err
		}
	}
	if err := session.Attach(engine.ComponentSpec{
		Name: "dot",
		Kind: "dot",
		Dot:  &engine.DotSpec{X: 128, Y: 128, Size: 8, Speed: 60},
	}); err != nil {
		session.Destroy()
		return nil, 0, err
	}
	return session, componentCount + 1, nil
}
