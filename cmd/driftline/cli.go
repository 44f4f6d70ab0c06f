// cmd/driftline/cli.go
package main

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/driftline/engine/internal/database"
	"github.com/driftline/engine/internal/model"
	v1 "github.com/driftline/engine/internal/storage/export/v1"
	"github.com/driftline/engine/internal/track"
	"github.com/driftline/engine/internal/util"
	"github.com/driftline/engine/pkg/core"
	"github.com/driftline/engine/pkg/hostbridge"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		runService()
		return
	}

	switch strings.ToLower(args[0]) {
	case "demo":
		runDemo()
	case "replay":
		if len(args) < 2 {
			fmt.Println("usage: driftline replay <ghost file>")
			os.Exit(2)
		}
		if err := runReplay(args[1]); err != nil {
			panic(err)
		}
	case "setupdb":
		if err := runSetupDB(); err != nil {
			panic(err)
		}
	case "report":
		if err := runReport(); err != nil {
			panic(err)
		}
	case "validate-track":
		if len(args) < 2 {
			fmt.Println("usage: driftline validate-track <course file>")
			os.Exit(2)
		}
		if !runValidateTrack(args[1]) {
			os.Exit(1)
		}
	default:
		fmt.Printf("unknown command %q\n", args[0])
		fmt.Println("usage: driftline [demo|replay|setupdb|report|validate-track]")
		os.Exit(2)
	}
}

// runService starts the engine and bridges stdin lines to the command
// dispatcher. Each line is one bridge call; compound commands pack args with
// "|" the same way an embedding host does.
func runService() {
	hostbridge.RegisterCallback(func(name, function, data string) {
		fmt.Printf("[%s] %s %s\n", name, function, data)
	})

	if err := startEngine(); err != nil {
		panic(fmt.Errorf("failed to start engine: %w", err))
	}
	initExtension()

	Logger.Info("Service mode, reading commands from stdin")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		fmt.Println(hostbridge.Call(line))
	}

	shutdown()
}

// demoScript is the scripted input for the demo run: full throttle with a
// flick through the chicane to show the drift model.
var demoScript = []struct {
	frame uint
	key   string
	down  bool
}{
	{0, "w", true},
	{240, "space", true},
	{250, "a", true},
	{280, "a", false},
	{285, "space", false},
	{450, "space", true},
	{460, "d", true},
	{490, "d", false},
	{495, "space", false},
}

// runDemo drives a scripted run through the full stack and prints state
// lines, ending with the best-time report.
func runDemo() {
	hostbridge.RegisterCallback(func(name, function, data string) {
		fmt.Printf("[%s] %s %s\n", name, function, data)
	})

	if err := startEngine(); err != nil {
		panic(fmt.Errorf("failed to start engine: %w", err))
	}

	fmt.Println(hostbridge.Call(":TRACK:LOAD:|demo"))
	fmt.Println(hostbridge.Call(":RACE:START:|demo-cli"))
	for range 3 {
		fmt.Println(hostbridge.Call(":RACE:COUNTDOWN:"))
	}

	const maxFrames = 60 * 120
	cursor := 0
	for frame := uint(0); frame < maxFrames; frame++ {
		for cursor < len(demoScript) && demoScript[cursor].frame <= frame {
			step := demoScript[cursor]
			state := "up"
			if step.down {
				state = "down"
			}
			hostbridge.CallArgs(":INPUT:", []string{step.key, state})
			cursor++
		}

		hostbridge.Call(":TICK:|0.016667")

		if frame%30 == 0 {
			fmt.Println(hostbridge.Call(":STATE:"))
		}
		if ph := gameEngine.Phase(); ph == core.PhaseWon || ph == core.PhaseLost {
			break
		}
	}

	fmt.Println(hostbridge.Call(":STATE:"))
	fmt.Println(hostbridge.Call(":BEST:"))
	shutdown()
}

// runReplay loads a ghost export and prints a verified summary.
func runReplay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("error opening gzip ghost: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export v1.Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return fmt.Errorf("error decoding ghost: %w", err)
	}

	fmt.Printf("track:    %s\n", export.Track)
	fmt.Printf("outcome:  %s", export.Outcome)
	if export.LossReason != "" && export.LossReason != "none" {
		fmt.Printf(" (%s)", export.LossReason)
	}
	fmt.Println()
	fmt.Printf("elapsed:  %s\n", util.FormatLapTime(export.Elapsed))
	fmt.Printf("started:  %s\n", export.StartedAt)
	fmt.Printf("engine:   %s (host %s)\n", export.EngineVersion, export.HostVersion)
	fmt.Printf("frames:   %d\n", len(export.Frames))
	fmt.Printf("events:   %d\n", len(export.Events))

	// Frame numbers must increase; a ghost with unordered frames replays
	// wrong in the host.
	ordered := true
	last := -1.0
	for _, frame := range export.Frames {
		if len(frame) == 0 {
			ordered = false
			break
		}
		n, ok := frame[0].(float64)
		if !ok || n <= last {
			ordered = false
			break
		}
		last = n
	}
	if !ordered {
		return fmt.Errorf("ghost frames are not strictly ordered")
	}
	fmt.Println("ghost OK")
	return nil
}

// runSetupDB connects to the database and migrates the schema.
func runSetupDB() error {
	dbm := database.NewManager(ZLogger)
	if err := dbm.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbm.Setup(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	if dbm.ShouldSaveLocal {
		fmt.Println("Migrated schema on local SQLite fallback")
	} else {
		fmt.Println("Migrated schema on Postgres")
	}
	return nil
}

// runReport prints best times and recent runs from the database.
func runReport() error {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	var bests []model.BestTime
	if err := db.Preload("Track").Order("elapsed asc").Find(&bests).Error; err != nil {
		return fmt.Errorf("error querying best times: %w", err)
	}
	fmt.Println("Best times:")
	if len(bests) == 0 {
		fmt.Println("  (none)")
	}
	for _, b := range bests {
		fmt.Printf("  %-24s %s  (run %d, %s)\n",
			b.Track.Name, util.FormatLapTime(b.Elapsed), b.RunID,
			b.AchievedAt.Format("2006-01-02 15:04"))
	}

	var runs []model.Run
	if err := db.Preload("Track").Order("started_at desc").Limit(10).Find(&runs).Error; err != nil {
		return fmt.Errorf("error querying runs: %w", err)
	}
	fmt.Println("Recent runs:")
	if len(runs) == 0 {
		fmt.Println("  (none)")
	}
	for _, r := range runs {
		fmt.Printf("  #%-5d %-24s %-8s %s\n",
			r.ID, r.Track.Name, r.Outcome, util.FormatLapTime(r.Elapsed))
	}
	return nil
}

// runValidateTrack loads a course file and reports geometry issues. Loading
// already audits segment and obstacle geometry; the extra checks here cover
// drivability, which a course can fail while still being well-formed.
func runValidateTrack(path string) bool {
	tr, err := track.FromFile(path)
	if err != nil {
		fmt.Printf("course does not load: %v\n", err)
		return false
	}

	var issues []string

	if len(tr.Segments) > 0 && !tr.Segments[0].Contains(tr.SpawnX, tr.SpawnZ) {
		issues = append(issues, "spawn lies outside the first segment")
	}
	for i := 1; i < len(tr.Segments); i++ {
		// Segments must overlap or touch so the drivable area has no gaps.
		if tr.Segments[i].ZStart < tr.Segments[i-1].ZEnd {
			issues = append(issues, fmt.Sprintf("gap between segment %d and %d", i-1, i))
		}
	}

	fmt.Printf("course:    %s\n", tr.Name)
	fmt.Printf("segments:  %d\n", len(tr.Segments))
	fmt.Printf("obstacles: %d\n", len(tr.Obstacles))
	if tr.HasFinish {
		fmt.Printf("finish:    z=%.1f\n", tr.FinishZ)
	} else {
		fmt.Println("finish:    none (free roam)")
	}

	if len(issues) > 0 {
		fmt.Println("issues:")
		for _, issue := range issues {
			fmt.Println("  -", issue)
		}
		return false
	}
	fmt.Println("course OK")
	return true
}
