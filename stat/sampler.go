package stat

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/afdtools/afdstats/logger"
	"github.com/afdtools/afdstats/toml"
)

// Config holds the sampler settings.
type Config struct {
	WorkDir string `toml:"work-dir"`

	// SampleInterval is the distance between two counter samples.
	SampleInterval toml.Duration `toml:"sample-interval"`

	// FlushInterval is the msync cadence for the mapped stores; it runs
	// coarser than the sample interval.
	FlushInterval toml.Duration `toml:"flush-interval"`
}

// NewConfig returns a Config with defaults.
func NewConfig() Config {
	return Config{
		SampleInterval: toml.Duration(SampleInterval),
		FlushInterval:  toml.Duration(time.Minute),
	}
}

// Sampler owns the two live statistics stores and advances them once per
// sample interval from the producer views. It is single-threaded: all store
// writes happen on the run goroutine.
type Sampler struct {
	WorkDir string
	Logger  *zap.Logger

	interval   time.Duration
	flushEvery time.Duration
	clock      clock.Clock

	hosts HostView
	dirs  DirView

	out *OutputFile
	in  *InputFile

	pos       Position
	lastFlush time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	fatalC  chan error
	closing bool
}

// NewSampler returns a Sampler over the given producer views.
func NewSampler(c Config, hosts HostView, dirs DirView) *Sampler {
	interval := time.Duration(c.SampleInterval)
	if interval <= 0 {
		interval = SampleInterval
	}
	flushEvery := time.Duration(c.FlushInterval)
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}
	return &Sampler{
		WorkDir:    c.WorkDir,
		Logger:     zap.NewNop(),
		interval:   interval,
		flushEvery: flushEvery,
		clock:      clock.New(),
		hosts:      hosts,
		dirs:       dirs,
		fatalC:     make(chan error, 1),
	}
}

// WithLogger sets the logger for the sampler.
func (s *Sampler) WithLogger(log *zap.Logger) {
	s.Logger = log.With(zap.String("service", "statistics"))
}

// WithClock replaces the wall clock, for tests.
func (s *Sampler) WithClock(c clock.Clock) { s.clock = c }

// Err delivers an unrecoverable sampler error. The run loop stops after
// sending one.
func (s *Sampler) Err() <-chan error { return s.fatalC }

// Open attaches both statistics stores, reconciling them against the
// producer rosters, and starts the sampling loop.
func (s *Sampler) Open(ctx context.Context) error {
	if s.cancel != nil {
		return nil
	}

	now := s.clock.Now()
	year := now.UTC().Year()

	out, prevOut, err := RebuildOutput(s.WorkDir, year, s.hosts, now)
	if err != nil {
		return err
	}
	in, prevIn, err := RebuildInput(s.WorkDir, year, s.dirs, now)
	if err != nil {
		out.Close()
		return err
	}
	s.out, s.in = out, in
	s.pos = s.loadPosition(now)
	s.lastFlush = now

	for _, path := range fullLayoutLeftovers(s.WorkDir, year) {
		s.Logger.Warn("Previous year was never archived, year queries against it will fail; reduce it with afdstatconv truncate",
			zap.String("path", path))
	}

	s.Logger.Info("Starting statistics sampler",
		zap.String("work_dir", s.WorkDir),
		logger.DurationLiteral("sample_interval", s.interval),
		logger.DurationLiteral("flush_interval", s.flushEvery),
		zap.Int("hosts", s.hosts.Len()),
		zap.Int("previous_hosts", prevOut),
		zap.Int("dirs", s.dirs.Len()),
		zap.Int("previous_dirs", prevIn))

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Close stops the sampling loop, flushes both stores and releases the maps
// and locks.
func (s *Sampler) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil

	var err error
	if s.out != nil {
		if e := s.out.Close(); err == nil {
			err = e
		}
		s.out = nil
	}
	if s.in != nil {
		if e := s.in.Close(); err == nil {
			err = e
		}
		s.in = nil
	}
	return err
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(s.clock.Now())
			if s.closing {
				return
			}
		case <-ctx.Done():
			s.Logger.Info("Terminating statistics sampler")
			return
		}
	}
}

// loadPosition recovers the grid position from the attached store, falling
// back to the clock for a store without rows.
func (s *Sampler) loadPosition(now time.Time) Position {
	year := int32(now.UTC().Year())
	if rows := s.out.Rows(); len(rows) > 0 {
		return rows[0].Position(year)
	}
	if rows := s.in.Rows(); len(rows) > 0 {
		return rows[0].Position(year)
	}
	return PositionAt(now)
}

// tick performs one sample step: process pending carries, reconcile the
// grid position with the clock, archive on a year change, re-attach on a
// roster change, then turn the producer totals into bucket deltas.
func (s *Sampler) tick(now time.Time) {
	s.applyPendingCarries()

	computed, skew, carries := Advance(s.pos, now)

	if carries.Year || s.pos.Day >= DaysPerYear {
		s.rollover(now, computed)
	} else {
		switch skew {
		case SkewRetry:
			s.Logger.Debug("Sample interval drift, waiting one interval",
				zap.Int32("stored_sec", s.pos.Sec), zap.Int32("computed_sec", computed.Sec))
			return
		case SkewAbsorbed:
			// NTP slew at the top of the hour; keep the stored indices.
		case SkewCorrectSec:
			s.Logger.Info("Second counter wrong, correcting",
				zap.Int32("stored", s.pos.Sec), zap.Int32("computed", computed.Sec))
			s.pos.Sec = computed.Sec
		case SkewCorrectHour:
			s.Logger.Info("Hour counter wrong, correcting",
				zap.Int32("stored_hour", s.pos.Hour), zap.Int32("computed_hour", computed.Hour),
				zap.Int32("stored_day", s.pos.Day), zap.Int32("computed_day", computed.Day))
			s.pos = computed
			s.zeroHourBuckets(computed.Hour)
		}
	}

	// A roster shape change invalidates the row mapping; swap the stores
	// and discard the sample in progress.
	if s.hosts.Len() != s.out.RowCount() || s.dirs.Len() != s.in.RowCount() {
		s.reattach(now)
		return
	}

	s.sampleOutput()
	s.sampleInput()

	s.pos.Sec++
	s.storePosition()

	if now.Sub(s.lastFlush) >= s.flushEvery {
		if err := s.out.Flush(); err != nil {
			s.Logger.Warn("Flushing output statistics failed", zap.Error(err))
		}
		if err := s.in.Flush(); err != nil {
			s.Logger.Warn("Flushing input statistics failed", zap.Error(err))
		}
		s.lastFlush = now
	}
}

// applyPendingCarries folds a full hour of samples upward: second into
// hour, hour into day, day into year.
func (s *Sampler) applyPendingCarries() {
	if s.pos.Sec < int32(SecsPerHour) {
		return
	}

	s.pos.Sec = 0
	s.pos.Hour++
	if s.pos.Hour < HoursPerDay {
		s.zeroHourBuckets(s.pos.Hour)
		s.storePosition()
		return
	}

	// Day carry: the finished day's hours become one year bucket.
	day := s.pos.Day
	outRows := s.out.Rows()
	for i := range outRows {
		r := &outRows[i]
		var sum Cell
		for h := range r.Day {
			sum.add(r.Day[h].Files, r.Day[h].Bytes, r.Day[h].Errors, r.Day[h].Connections)
		}
		r.Year[day] = sum
		r.Day = [HoursPerDay]Cell{}
	}
	inRows := s.in.Rows()
	for i := range inRows {
		r := &inRows[i]
		var sum InCell
		for h := range r.Day {
			sum.add(r.Day[h].Files, r.Day[h].Bytes)
		}
		r.Year[day] = sum
		r.Day = [HoursPerDay]InCell{}
	}

	s.pos.Hour = 0
	s.pos.Day++
	s.storePosition()
}

// zeroHourBuckets clears the day bucket a fresh hour accumulates into.
func (s *Sampler) zeroHourBuckets(hour int32) {
	outRows := s.out.Rows()
	for i := range outRows {
		outRows[i].Day[hour] = Cell{}
	}
	inRows := s.in.Rows()
	for i := range inRows {
		inRows[i].Day[hour] = InCell{}
	}
}

// storePosition mirrors the engine position into every row.
func (s *Sampler) storePosition() {
	outRows := s.out.Rows()
	for i := range outRows {
		outRows[i].setPosition(s.pos)
	}
	inRows := s.in.Rows()
	for i := range inRows {
		inRows[i].setPosition(s.pos)
	}
}

func (s *Sampler) sampleOutput() {
	sec, hour := s.pos.Sec, s.pos.Hour
	rows := s.out.Rows()
	for i := range rows {
		if s.hosts.IsGroup(i) {
			// Group rows advance with the grid but collect no counters.
			continue
		}
		r := &rows[i]

		filesNow := s.hosts.FilesDone(i)
		kind, files := ClassifyDelta(r.PrevFiles, filesNow, MaxFilesPerScan)
		if kind == DeltaReset {
			s.Logger.Debug("File counter reset by producer",
				zap.String("host", r.AliasString()),
				zap.Uint32("prev", r.PrevFiles), zap.Uint32("now", filesNow))
		}

		var bytes float64
		bytesNow := s.hosts.BytesDone(i)
		for j := 0; j < len(bytesNow) && j < MaxParallelJobs; j++ {
			d, clamped := ByteDelta(r.PrevBytes[j], bytesNow[j])
			if clamped {
				s.Logger.Debug("Negative byte delta clamped",
					zap.String("host", r.AliasString()), zap.Int("job", j))
			}
			bytes += d
		}

		errsNow := s.hosts.Errors(i)
		_, errs := ClassifyDelta(r.PrevErrors, errsNow, MaxFilesPerScan)
		connsNow := s.hosts.Connections(i)
		_, conns := ClassifyDelta(r.PrevConnections, connsNow, MaxFilesPerScan)

		r.Hour[sec] = Cell{Bytes: bytes, Files: files, Errors: errs, Connections: conns}
		r.Day[hour].add(files, bytes, errs, conns)

		r.PrevFiles = filesNow
		for j := 0; j < len(bytesNow) && j < MaxParallelJobs; j++ {
			r.PrevBytes[j] = bytesNow[j]
		}
		r.PrevErrors = errsNow
		r.PrevConnections = connsNow
	}
}

func (s *Sampler) sampleInput() {
	sec, hour := s.pos.Sec, s.pos.Hour
	rows := s.in.Rows()
	for i := range rows {
		r := &rows[i]

		filesNow := s.dirs.FilesReceived(i)
		kind, files := ClassifyDelta(r.PrevFiles, filesNow, MaxFilesPerScan)
		if kind == DeltaReset {
			s.Logger.Debug("File counter reset by producer",
				zap.String("dir", r.AliasString()),
				zap.Uint32("prev", r.PrevFiles), zap.Uint32("now", filesNow))
		}

		bytesNow := s.dirs.BytesReceived(i)
		bytes, clamped := ByteDelta(r.PrevBytes, bytesNow)
		if clamped {
			s.Logger.Debug("Negative byte delta clamped", zap.String("dir", r.AliasString()))
		}

		r.Hour[sec] = InCell{Bytes: bytes, Files: files}
		r.Day[hour].add(files, bytes)

		r.PrevFiles = filesNow
		r.PrevBytes = bytesNow
	}
}

// rollover archives the finished year and resets the live stores.
func (s *Sampler) rollover(now time.Time, computed Position) {
	oldYear, newYear := int(s.pos.Year), int(computed.Year)
	if newYear == oldYear {
		// Day index wrapped before the calendar year changed.
		newYear = oldYear + 1
	}
	if newYear < oldYear {
		s.Logger.Warn("Clock went backwards across a year boundary",
			zap.Int("stored_year", oldYear), zap.Int("computed_year", newYear))
	}

	s.Logger.Info("Archiving finished statistics year",
		zap.Int("year", oldYear), zap.Int("new_year", newYear))

	if err := RolloverOutput(s.out, s.WorkDir, oldYear, newYear, now); err != nil {
		s.Logger.Error("Output year rollover failed", zap.Error(err))
	}
	if err := RolloverInput(s.in, s.WorkDir, oldYear, newYear, now); err != nil {
		s.Logger.Error("Input year rollover failed", zap.Error(err))
	}

	s.pos = rolloverPosition(now)
	s.pos.Year = int32(newYear)
}

// reattach swaps both stores for rebuilt ones after a roster change.
func (s *Sampler) reattach(now time.Time) {
	s.Logger.Info("Roster changed, rebuilding statistics stores",
		zap.Int("hosts", s.hosts.Len()), zap.Int("host_rows", s.out.RowCount()),
		zap.Int("dirs", s.dirs.Len()), zap.Int("dir_rows", s.in.RowCount()))

	year := int(s.pos.Year)

	outRows := s.out.Rows()
	knownHosts := make(map[string]bool, len(outRows))
	for i := range outRows {
		knownHosts[outRows[i].AliasString()] = true
	}
	inRows := s.in.Rows()
	knownDirs := make(map[string]bool, len(inRows))
	for i := range inRows {
		knownDirs[inRows[i].AliasString()] = true
	}

	s.out.Close()
	out, _, err := RebuildOutput(s.WorkDir, year, s.hosts, now)
	if err != nil {
		s.fail(err)
		return
	}
	s.out = out

	s.in.Close()
	in, _, err := RebuildInput(s.WorkDir, year, s.dirs, now)
	if err != nil {
		s.fail(err)
		return
	}
	s.in = in

	s.primeFreshRows(knownHosts, knownDirs)
	s.storePosition()
}

// primeFreshRows seeds the raw counter snapshots of rows added mid-run.
// Rows created with the store book the producer's running totals on the
// first sample; a host or directory joining later must not, since those
// totals predate the row.
func (s *Sampler) primeFreshRows(knownHosts, knownDirs map[string]bool) {
	rows := s.out.Rows()
	for i := range rows {
		r := &rows[i]
		if knownHosts[r.AliasString()] {
			continue
		}
		r.PrevFiles = s.hosts.FilesDone(i)
		b := s.hosts.BytesDone(i)
		for j := 0; j < len(b) && j < MaxParallelJobs; j++ {
			r.PrevBytes[j] = b[j]
		}
		r.PrevErrors = s.hosts.Errors(i)
		r.PrevConnections = s.hosts.Connections(i)
	}
	inRows := s.in.Rows()
	for i := range inRows {
		r := &inRows[i]
		if knownDirs[r.AliasString()] {
			continue
		}
		r.PrevFiles = s.dirs.FilesReceived(i)
		r.PrevBytes = s.dirs.BytesReceived(i)
	}
}

// fail reports an unrecoverable error and stops the run loop.
func (s *Sampler) fail(err error) {
	s.Logger.Error("Unrecoverable sampler error", zap.Error(err))
	s.closing = true
	select {
	case s.fatalC <- err:
	default:
	}
}
