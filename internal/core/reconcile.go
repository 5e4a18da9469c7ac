package core

// reconcile.go runs one import: parse, normalize, validate, detect
// duplicates, decide per row, write in batches, and report.
//
// The stages are connected by plain values only. The run is best-effort: a
// failed write batch becomes a critical issue and the remaining batches are
// still attempted. Nothing below ImportWithValidation panics past it; a
// recovered panic is reported as a critical issue with a zero report.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// DefaultBatchSize bounds the number of rows sent in one store call.
const DefaultBatchSize = 100

// Importer reconciles uploaded files against a store.
type Importer struct {
	store     store.Store
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithBatchSize sets the write batch size. Values <= 0 keep the default.
func WithBatchSize(n int) ImporterOption {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithClock replaces time.Now for timings and audit timestamps.
func WithClock(now func() time.Time) ImporterOption {
	return func(im *Importer) { im.now = now }
}

// WithLogger sets the logger used for run and batch events.
func WithLogger(l *slog.Logger) ImporterOption {
	return func(im *Importer) { im.logger = l }
}

// NewImporter returns an Importer writing to st.
func NewImporter(st store.Store, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:     st,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Decide maps each row to a write action. A row with an error fails. A row
// repeating an earlier row of the file is skipped. A row with an exact
// duplicate is updated when opts.UpdateExisting is set, skipped when
// opts.SkipDuplicates is set, and fails otherwise. Every other row is
// inserted.
func Decide(def Definition, rows []NormalizedRow, v ValidationResult, dups []DuplicateCandidate, opts Options) []Decision {
	errorRows := v.ErrorRows()
	repeated := inFileDuplicates(def, rows, errorRows)
	exact := ExactMatches(dups)

	decisions := make([]Decision, len(rows))
	for i, row := range rows {
		d := Decision{Row: row.Line, Action: ActionInsert}
		first, isRepeat := repeated[row.Line]
		existingID, isExact := exact[row.Line]

		switch {
		case errorRows[row.Line]:
			d.Action, d.Reason = ActionFail, "row has validation errors"
		case isRepeat:
			d.Action, d.Reason = ActionSkip, fmt.Sprintf("same record as row %d", first)
		case isExact && opts.UpdateExisting:
			d.Action, d.ExistingID = ActionUpdate, existingID
		case isExact && opts.SkipDuplicates:
			d.Action, d.ExistingID, d.Reason = ActionSkip, existingID, "already exists"
		case isExact:
			d.Action, d.ExistingID, d.Reason = ActionFail, existingID, "name already exists; choose update or skip"
		}
		decisions[i] = d
	}
	return decisions
}

// pending is a record queued for a write batch with its source line.
type pending struct {
	line   int
	record store.Record
}

// ImportWithValidation imports file into the collection named by opts.Kind.
func (im *Importer) ImportWithValidation(ctx context.Context, file File, opts Options) (result ImportResult) {
	start := im.now()
	logger := im.logger
	if opts.Logger != nil {
		logger = opts.Logger
	}
	logger = logger.With("collection", string(opts.Kind), "file", file.Name)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in import", "panic", r)
			result = abortResult([]ValidationIssue{{
				Message:  fmt.Sprintf("import stopped: recovered panic: %v (Code: INT001)", r),
				Severity: SeverityCritical,
			}}, NewTimings(0, 0, im.now().Sub(start)))
		}
	}()

	def, err := DefinitionFor(opts.Kind)
	if err != nil {
		return abortResult([]ValidationIssue{criticalFromError(0, err)}, Timings{})
	}

	logger.Info("import started",
		"update_existing", opts.UpdateExisting,
		"skip_duplicates", opts.SkipDuplicates,
		"validate_only", opts.ValidateOnly,
	)

	norm := NewNormalizer(def)
	parsed := Parser{Resolve: norm.Canonical}.Parse(file.Content)
	if parsed.Critical() {
		logger.Warn("import aborted", "reason", firstCritical(parsed.Issues))
		return abortResult(parsed.Issues, NewTimings(im.now().Sub(start), 0, im.now().Sub(start)))
	}
	rows := norm.Rows(parsed.Rows)

	snap, err := im.snapshot(ctx, def)
	if err != nil {
		logger.Error("load existing records failed", "error", err)
		return abortResult([]ValidationIssue{criticalFromError(0, fmt.Errorf("load existing records: %w", err))},
			NewTimings(im.now().Sub(start), 0, im.now().Sub(start)))
	}

	validation := NewValidator(def).Validate(rows, snap)
	dups := preferKeyMatch(def, rows, snap.Existing, DetectDuplicates(rows, snap.Existing))

	warnings := append([]ValidationIssue(nil), parsed.Issues...)
	warnings = append(warnings, validation.Warnings...)
	for _, c := range dups {
		if c.MatchType == MatchExact {
			continue
		}
		warnings = append(warnings, ValidationIssue{
			Row:      c.Row,
			Field:    "name",
			Value:    c.MatchedName,
			Message:  fmt.Sprintf("possible duplicate of %q (%s, %d%%)", c.MatchedName, c.MatchType, c.Confidence),
			Severity: SeverityWarning,
		})
	}

	validated := im.now()
	validationTime := validated.Sub(start)

	if opts.ValidateOnly {
		sortIssues(warnings)
		counts := Counts{TotalRows: len(rows)}
		result = ImportResult{
			Success:    validation.IsValid,
			Errors:     nonNil(validation.Errors),
			Warnings:   nonNil(warnings),
			Duplicates: nonNilDups(dups),
			Report:     BuildReport(counts, NewTimings(validationTime, 0, im.now().Sub(start)), validation.Suggestions),
		}
		logger.Info("validation finished", "rows", len(rows), "valid", validation.IsValid)
		return result
	}

	decisions := Decide(def, rows, validation, dups, opts)
	errs := append([]ValidationIssue(nil), validation.Errors...)
	counts := Counts{TotalRows: len(rows)}

	existing := make(map[string]store.Record, len(snap.Existing))
	for _, r := range snap.Existing {
		existing[r.ID] = r
	}

	var inserts, updates []pending
	for i, d := range decisions {
		row := rows[i]
		switch d.Action {
		case ActionFail:
			counts.Failed++
			if d.ExistingID != "" {
				errs = append(errs, ValidationIssue{
					Row:      d.Row,
					Field:    "name",
					Value:    row.Text("name"),
					Message:  d.Reason,
					Severity: SeverityError,
				})
			}
		case ActionSkip:
			counts.Skipped++
		case ActionInsert:
			inserts = append(inserts, pending{line: d.Row, record: def.Record(row)})
		case ActionUpdate:
			rec, warn := mergeExisting(def, def.Record(row), existing[d.ExistingID], d.Row)
			if warn != nil {
				warnings = append(warnings, *warn)
			}
			updates = append(updates, pending{line: d.Row, record: rec})
		}
	}

	kind := def.Kind
	written, failed, criticals := im.writeBatches(logger, "insert", inserts, func(batch []store.Record) ([]store.Record, error) {
		return im.store.Insert(ctx, kind, batch)
	})
	counts.Imported += written
	counts.Failed += failed
	errs = append(errs, criticals...)

	conflictKeys := store.NaturalKey(kind)
	written, failed, criticals = im.writeBatches(logger, "upsert", updates, func(batch []store.Record) ([]store.Record, error) {
		return im.store.Upsert(ctx, kind, batch, conflictKeys)
	})
	counts.Updated += written
	counts.Failed += failed
	errs = append(errs, criticals...)

	entry := store.ImportLog{
		Collection:   kind,
		FileName:     file.Name,
		TotalRows:    counts.TotalRows,
		Imported:     counts.Imported,
		Updated:      counts.Updated,
		Skipped:      counts.Skipped,
		Failed:       counts.Failed,
		ProcessingMs: im.now().Sub(start).Milliseconds(),
		CreatedAt:    im.now(),
	}
	if err := im.store.AppendLog(ctx, entry); err != nil {
		logger.Warn("audit log write failed", "error", err)
		warnings = append(warnings, ValidationIssue{
			Message:  fmt.Sprintf("audit log entry was not written: %v", err),
			Severity: SeverityWarning,
		})
	}

	end := im.now()
	sortIssues(errs)
	sortIssues(warnings)

	result = ImportResult{
		Imported:   counts.Imported,
		Updated:    counts.Updated,
		Skipped:    counts.Skipped,
		Failed:     counts.Failed,
		Errors:     nonNil(errs),
		Warnings:   nonNil(warnings),
		Duplicates: nonNilDups(dups),
		Report:     BuildReport(counts, NewTimings(validationTime, end.Sub(validated), end.Sub(start)), validation.Suggestions),
	}
	result.Success = len(result.Criticals()) == 0

	logger.Info("import finished",
		"rows", counts.TotalRows,
		"imported", counts.Imported,
		"updated", counts.Updated,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
		"duration_ms", result.Report.Timings.TotalMs,
	)
	return result
}

// snapshot loads the records a run is validated against.
func (im *Importer) snapshot(ctx context.Context, def Definition) (Snapshot, error) {
	existing, err := im.store.Select(ctx, def.Kind, store.Filter{})
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Existing: existing}

	if _, ok := def.columnField(ColumnParent); ok {
		parents, err := im.store.Select(ctx, store.Venues, store.Filter{})
		if err != nil {
			return Snapshot{}, err
		}
		for _, p := range parents {
			snap.KnownParents = append(snap.KnownParents, p.Name)
		}
	}
	return snap, nil
}

// writeBatches sends items in chunks of the batch size. A failed chunk adds
// a critical issue and counts its rows as failed.
func (im *Importer) writeBatches(logger *slog.Logger, op string, items []pending, write func([]store.Record) ([]store.Record, error)) (written, failed int, criticals []ValidationIssue) {
	for lo := 0; lo < len(items); lo += im.batchSize {
		hi := min(lo+im.batchSize, len(items))
		chunk := items[lo:hi]

		batch := make([]store.Record, len(chunk))
		for i, p := range chunk {
			batch[i] = p.record
		}

		if _, err := write(batch); err != nil {
			msg := MapError(err)
			logger.Error("batch write failed",
				"op", op,
				"first_row", chunk[0].line,
				"rows", len(chunk),
				"code", msg.Code,
				"error", err,
			)
			failed += len(chunk)
			criticals = append(criticals, ValidationIssue{
				Row: chunk[0].line,
				Message: fmt.Sprintf("%s of %d rows (rows %d-%d) failed: %v (Code: %s)",
					op, len(chunk), chunk[0].line, chunk[len(chunk)-1].line, err, msg.Code),
				Severity: SeverityCritical,
			})
			continue
		}
		written += len(chunk)
	}
	return written, failed, criticals
}

// mergeExisting points an update at the record it replaces. The natural key
// columns always come from the existing record so the upsert hits it.
// preferKeyMatch re-points exact candidates to the existing record with the
// row's full natural key when several records share the name, so a product
// updates the record under its own venue.
func preferKeyMatch(def Definition, rows []NormalizedRow, existing []store.Record, dups []DuplicateCandidate) []DuplicateCandidate {
	byKey := make(map[string]store.Record, len(existing))
	for _, r := range existing {
		k := recordKey(def.Kind, r)
		if _, ok := byKey[k]; !ok {
			byKey[k] = r
		}
	}
	byLine := make(map[int]NormalizedRow, len(rows))
	for _, row := range rows {
		byLine[row.Line] = row
	}
	for i, c := range dups {
		if c.MatchType != MatchExact {
			continue
		}
		if r, ok := byKey[def.rowKey(byLine[c.Row])]; ok {
			dups[i].ExistingID = r.ID
			dups[i].MatchedName = r.Name
		}
	}
	return dups
}

func recordKey(kind store.Collection, r store.Record) string {
	cols := store.NaturalKey(kind)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = foldKey(r.KeyValue(col))
	}
	return strings.Join(parts, "\x1f")
}

func mergeExisting(def Definition, rec, existing store.Record, line int) (store.Record, *ValidationIssue) {
	var warn *ValidationIssue
	for _, col := range store.NaturalKey(def.Kind) {
		incoming, current := rec.KeyValue(col), existing.KeyValue(col)
		if incoming != "" && foldKey(incoming) != foldKey(current) {
			f, _ := def.columnField(col)
			warn = &ValidationIssue{
				Row:      line,
				Field:    f.Key,
				Value:    incoming,
				Message:  fmt.Sprintf("differs from the existing record; kept %q", current),
				Severity: SeverityWarning,
			}
		}
	}
	rec.ID = existing.ID
	rec.Name = existing.Name
	rec.Address = existing.Address
	rec.Parent = existing.Parent
	return rec, warn
}

func abortResult(issues []ValidationIssue, timings Timings) ImportResult {
	result := ImportResult{
		Errors:     []ValidationIssue{},
		Warnings:   []ValidationIssue{},
		Duplicates: []DuplicateCandidate{},
		Report:     BuildReport(Counts{}, timings, nil),
	}
	for _, issue := range issues {
		if issue.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, issue)
			continue
		}
		result.Errors = append(result.Errors, issue)
	}
	return result
}

func criticalFromError(row int, err error) ValidationIssue {
	return ValidationIssue{
		Row:      row,
		Message:  fmt.Sprintf("%v (Code: %s)", err, MapError(err).Code),
		Severity: SeverityCritical,
	}
}

func firstCritical(issues []ValidationIssue) string {
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return issue.Message
		}
	}
	return ""
}

func nonNil(issues []ValidationIssue) []ValidationIssue {
	if issues == nil {
		return []ValidationIssue{}
	}
	return issues
}

func nonNilDups(dups []DuplicateCandidate) []DuplicateCandidate {
	if dups == nil {
		return []DuplicateCandidate{}
	}
	return dups
}
