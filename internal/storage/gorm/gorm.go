// Package gormstorage implements the storage.Backend interface over GORM
// with internal queues and a background DB writer goroutine. The postgres and
// sqlite backends wrap it and add their dialect-specific concerns.
package gormstorage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/model"
	"github.com/driftline/engine/internal/model/convert"
	"github.com/driftline/engine/internal/queue"
	"github.com/driftline/engine/internal/session"
	v1 "github.com/driftline/engine/internal/storage/export/v1"
	"github.com/driftline/engine/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB // nil runs the backend queue-only, for unit testing
	BestTimes  *cache.BestTimeCache
	LogManager *logging.SlogManager
	Session    *session.Context

	// Lifecycle guards owned by the host process. All optional.
	IsDatabaseValid func() bool
	ShouldSaveLocal func() bool
	DBInsertsPaused func() bool
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Samples *queue.Queue[model.TelemetrySample]
	Events  *queue.Queue[model.RunEvent]
}

func newQueues() *queues {
	return &queues{
		Samples: queue.New[model.TelemetrySample](),
		Events:  queue.New[model.RunEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	runID    atomic.Uint64
	stopChan chan struct{}
	dbReady  bool

	lastDBWriteDuration atomic.Int64 // nanoseconds
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine. With no DB injected the backend runs queue-only; the
// postgres and sqlite wrappers dial before calling Init.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB != nil {
		if err := b.setupDB(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.dbReady = true
	}

	b.startDBWriters()
	return nil
}

// setupDB migrates the schema and warms the best-time cache.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	models := model.DatabaseModels
	if b.shouldSaveLocal() {
		models = model.DatabaseModelsSQLite
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.warmBestTimes()

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// warmBestTimes loads stored best times into the cache so race logic can
// compare against records without a DB round trip per run.
func (b *Backend) warmBestTimes() {
	if b.deps.BestTimes == nil {
		return
	}

	var rows []struct {
		Name    string
		Elapsed float64
	}
	err := b.deps.DB.Model(&model.BestTime{}).
		Select("tracks.name AS name, best_times.elapsed AS elapsed").
		Joins("JOIN tracks ON tracks.id = best_times.track_id").
		Scan(&rows).Error
	if err != nil {
		b.deps.LogManager.WriteLog("warmBestTimes", fmt.Sprintf("Failed to load best times: %v", err), "ERROR")
		return
	}

	times := make(map[string]float64, len(rows))
	for _, row := range rows {
		times[row.Name] = row.Elapsed
	}
	b.deps.BestTimes.Warm(times)
}

// Close stops the DB writer goroutine.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return nil
}

// StartRun performs track get-or-insert and run create in the DB, returning
// the DB-assigned run ID. In queue-only mode the ID is always zero.
func (b *Backend) StartRun(meta *core.RunMeta, track *core.Track) (uint, error) {
	if b.deps.DB == nil {
		return 0, nil
	}

	db := b.deps.DB
	log := b.deps.LogManager

	// Track get-or-insert
	gormTrack := convert.CoreToTrack(*track)
	created, err := gormTrack.GetOrInsert(db)
	if err != nil {
		return 0, fmt.Errorf("failed to get or insert track: %w", err)
	}
	if created {
		log.WriteLog("StartRun", fmt.Sprintf("Created track %s (id %d)", gormTrack.Name, gormTrack.ID), "INFO")
	}

	// Run create
	gormRun := convert.CoreToRun(*meta)
	gormRun.TrackID = gormTrack.ID
	if err := db.Create(&gormRun).Error; err != nil {
		return 0, fmt.Errorf("failed to insert new run: %w", err)
	}

	// Store run ID for the DB writer goroutine
	b.runID.Store(uint64(gormRun.ID))
	if b.deps.Session != nil {
		b.deps.Session.SetRunID(gormRun.ID)
	}

	return gormRun.ID, nil
}

// SetDB injects the database handle. Wrappers that dial lazily call this
// before Init; it must not be called once the writer goroutine is running.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// SetRunID sets the current run ID for the DB writer (used by CLI tools).
func (b *Backend) SetRunID(id uint) {
	b.runID.Store(uint64(id))
}

// EndRun stamps the outcome onto the run row.
func (b *Backend) EndRun(runID uint, result core.RunResult) error {
	if b.deps.DB == nil {
		return nil
	}

	updates := map[string]any{
		"outcome":     result.Outcome.String(),
		"loss_reason": result.Reason.String(),
		"elapsed":     result.Elapsed,
		"ended_at":    sql.NullTime{Time: result.EndedAt, Valid: !result.EndedAt.IsZero()},
	}
	if err := b.deps.DB.Model(&model.Run{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update run %d: %w", runID, err)
	}
	return nil
}

// WriteSamples converts telemetry samples to GORM rows and pushes them to the
// write queue. The wall-clock stamp is the enqueue time.
func (b *Backend) WriteSamples(samples []core.TelemetrySample) error {
	now := time.Now()
	for _, s := range samples {
		b.queues.Samples.Push(convert.CoreToTelemetrySample(s, now))
	}
	return nil
}

// WriteEvents converts run events to GORM rows and pushes them to the write queue.
func (b *Backend) WriteEvents(events []core.RunEvent) error {
	now := time.Now()
	for _, e := range events {
		b.queues.Events.Push(convert.CoreToRunEvent(e, now))
	}
	return nil
}

// BestTime returns the stored best time for a track. The warmed cache answers
// first; the DB is only consulted on a miss.
func (b *Backend) BestTime(track string) (float64, bool, error) {
	if b.deps.BestTimes != nil {
		if elapsed, ok := b.deps.BestTimes.Get(track); ok {
			return elapsed, true, nil
		}
	}
	if b.deps.DB == nil {
		return 0, false, nil
	}

	var row model.BestTime
	err := b.deps.DB.
		Joins("JOIN tracks ON tracks.id = best_times.track_id").
		Where("tracks.name = ?", track).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to query best time: %w", err)
	}
	return row.Elapsed, true, nil
}

// SaveBestTime upserts the best time row for a track, tagging it with the
// current run.
func (b *Backend) SaveBestTime(track string, elapsed float64) error {
	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB

	gormTrack := model.Track{Name: track}
	if _, err := gormTrack.GetOrInsert(db); err != nil {
		return fmt.Errorf("failed to get or insert track: %w", err)
	}

	runID := uint(b.runID.Load())

	var row model.BestTime
	err := db.Where("track_id = ?", gormTrack.ID).First(&row).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to query best time: %w", err)
		}
		row = model.BestTime{
			TrackID:    gormTrack.ID,
			RunID:      runID,
			Elapsed:    elapsed,
			AchievedAt: time.Now(),
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert best time: %w", err)
		}
		return nil
	}

	updates := map[string]any{
		"run_id":      runID,
		"elapsed":     elapsed,
		"achieved_at": time.Now(),
	}
	if err := db.Model(&row).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update best time: %w", err)
	}
	return nil
}

// ExportGhost reads a run back from the DB and renders it as a v1 ghost payload.
func (b *Backend) ExportGhost(runID uint) ([]byte, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("no database configured")
	}

	db := b.deps.DB

	var run model.Run
	if err := db.Preload("Track").First(&run, runID).Error; err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", runID, err)
	}

	var sampleRows []model.TelemetrySample
	if err := db.Where("run_id = ?", runID).Order("frame asc").Find(&sampleRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load samples for run %d: %w", runID, err)
	}

	var eventRows []model.RunEvent
	if err := db.Where("run_id = ?", runID).Order("frame asc").Find(&eventRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load events for run %d: %w", runID, err)
	}

	meta := convert.RunToMeta(run)
	track := convert.TrackToCore(run.Track)

	samples := make([]core.TelemetrySample, 0, len(sampleRows))
	for _, row := range sampleRows {
		samples = append(samples, convert.TelemetrySampleToCore(row))
	}
	events := make([]core.RunEvent, 0, len(eventRows))
	for _, row := range eventRows {
		events = append(events, convert.RunEventToCore(row))
	}

	data := &v1.RunData{
		Meta:    &meta,
		Track:   &track,
		Samples: samples,
		Events:  events,
	}
	if run.Outcome != "ongoing" {
		result := convert.RunToResult(run)
		data.Result = &result
	}

	return json.Marshal(v1.Build(data))
}

// QueueLengths reports the current write queue depths for the monitor.
func (b *Backend) QueueLengths() (samples, events int) {
	return b.queues.Samples.Len(), b.queues.Events.Len()
}

// GetLastDBWriteDuration returns how long the last write cycle took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastDBWriteDuration.Load())
}

func (b *Backend) isDatabaseValid() bool {
	if b.deps.IsDatabaseValid == nil {
		return true
	}
	return b.deps.IsDatabaseValid()
}

func (b *Backend) shouldSaveLocal() bool {
	if b.deps.ShouldSaveLocal == nil {
		return false
	}
	return b.deps.ShouldSaveLocal()
}

func (b *Backend) dbInsertsPaused() bool {
	if b.deps.DBInsertsPaused == nil {
		return false
	}
	return b.deps.DBInsertsPaused()
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T), onSuccess func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
	if onSuccess != nil {
		onSuccess(items)
	}
}

// startDBWriters starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriters() {
	log := b.deps.LogManager.WriteLog

	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbReady || !b.isDatabaseValid() || b.dbInsertsPaused() {
				time.Sleep(1 * time.Second)
				continue
			}

			// Read runID once per write cycle; samples queued before
			// StartRun returned carry no run ID yet.
			runID := uint(b.runID.Load())

			stampSamples := func(items []model.TelemetrySample) {
				for i := range items {
					if items[i].RunID == 0 {
						items[i].RunID = runID
					}
				}
			}
			stampEvents := func(items []model.RunEvent) {
				for i := range items {
					if items[i].RunID == 0 {
						items[i].RunID = runID
					}
				}
			}

			start := time.Now()
			writeQueue(b.deps.DB, b.queues.Samples, "telemetry samples", log, stampSamples, nil)
			writeQueue(b.deps.DB, b.queues.Events, "run events", log, stampEvents, nil)
			b.lastDBWriteDuration.Store(int64(time.Since(start)))

			time.Sleep(2 * time.Second)
		}
	}()
}
