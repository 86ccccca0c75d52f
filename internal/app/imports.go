package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/okian/scorecard/internal/adapters/mq/queue"
	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	"github.com/okian/scorecard/internal/domain/bulk"
	"github.com/okian/scorecard/internal/domain/dedupe"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

// Import runs a whole file synchronously. Row failures are reported in the
// result; the error is set only when the file itself is unusable.
func (s *Service) Import(ctx context.Context, data []byte, format, actor string) (model.ImportResult, error) {
	tbl, _, err := s.decode(data, format)
	if err != nil {
		return model.ImportResult{}, err
	}
	res, err := s.pipeline.Run(ctx, tbl, actor)
	if err != nil {
		return model.ImportResult{}, fileError(err)
	}
	return res, nil
}

// SubmitImport queues a file for a background worker. Re-submitting the
// same file as the same actor while its job is pending returns that job with
// duplicate set. A full queue fails with queue.ErrFull.
func (s *Service) SubmitImport(ctx context.Context, data []byte, format, actor string) (job model.ImportJob, duplicate bool, err error) {
	if format, err = s.checkFile(data, format); err != nil {
		return model.ImportJob{}, false, err
	}

	fp := dedupe.Fingerprint(actor, data)
	job, duplicate = s.reserveJob(ctx, fp, format, actor)
	if duplicate {
		metrics.RecordImportDuplicate()
		s.logger.Info(ctx, "duplicate import folded into pending job",
			logger.String("job_id", job.ID),
			logger.String("actor", actor),
		)
		return job, true, nil
	}
	id := job.ID

	queued := job
	queued.Data = data
	if err := s.jobQueue.Enqueue(ctx, queued); err != nil {
		s.jobsMu.Lock()
		s.deduper.Release(ctx, fp)
		s.jobs.Remove(id)
		s.jobsMu.Unlock()
		metrics.RecordErrorByComponent("queue", "enqueue")
		return model.ImportJob{}, false, err
	}
	s.logger.Info(ctx, "import queued",
		logger.String("job_id", id),
		logger.String("actor", actor),
		logger.String("format", format),
		logger.Int("bytes", len(data)),
	)
	return job, false, nil
}

// reserveJob claims fp for a new queued job, or returns the pending job that
// already owns it. The claim and the job record are published under jobsMu so
// a concurrent submitter never sees a claim without its job.
func (s *Service) reserveJob(ctx context.Context, fp, format, actor string) (model.ImportJob, bool) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id := uuid.NewString()
	owner, existed := s.deduper.Claim(ctx, fp, id)
	if existed {
		if prev, ok := s.jobs.Peek(owner); ok && !prev.Status.Terminal() {
			return prev, true
		}
		// the binding outlived its job
		s.deduper.Release(ctx, fp)
		if owner, existed = s.deduper.Claim(ctx, fp, id); existed {
			if prev, ok := s.jobs.Peek(owner); ok {
				return prev, true
			}
		}
	}

	job := model.ImportJob{
		ID:          id,
		Actor:       actor,
		Format:      format,
		Status:      model.JobQueued,
		SubmittedAt: s.now().UTC(),
		Fingerprint: fp,
	}
	s.jobs.Add(id, job)
	return job, false
}

// Process runs one queued job and records its outcome. Workers call it.
func (s *Service) Process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: jobs travel by value
	defer s.deduper.Release(ctx, job.Fingerprint)

	s.updateJob(job.ID, func(j *model.ImportJob) { j.Status = model.JobRunning })
	res, err := s.Import(ctx, job.Data, job.Format, job.Actor)
	finished := s.now().UTC()

	status := model.JobCompleted
	if err != nil {
		status = model.JobFailed
	}
	s.updateJob(job.ID, func(j *model.ImportJob) {
		j.Status = status
		j.FinishedAt = &finished
		if err != nil {
			j.Error = err.Error()
			return
		}
		j.Result = &res
	})
	metrics.RecordImportJob(string(status))
	return err
}

// Job returns the state of an async import.
func (s *Service) Job(_ context.Context, id string) (model.ImportJob, error) {
	j, ok := s.jobs.Peek(id)
	if !ok {
		return model.ImportJob{}, errors.Wrapf(ErrJobNotFound, "job %s", id)
	}
	return j, nil
}

func (s *Service) updateJob(id string, fn func(*model.ImportJob)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	j, ok := s.jobs.Peek(id)
	if !ok {
		// evicted from history; keep tracking the job we are running
		j = model.ImportJob{ID: id}
	}
	fn(&j)
	s.jobs.Add(id, j)
}

// checkFile enforces the size limit and resolves the format without decoding.
func (s *Service) checkFile(data []byte, format string) (string, error) {
	if int64(len(data)) > s.maxImportBytes {
		return "", errors.Wrapf(ErrFileTooLarge, "%d bytes, limit %d", len(data), s.maxImportBytes)
	}
	if len(data) == 0 {
		return "", fileError(bulk.ErrEmptyFile)
	}
	if format == "" {
		_, name := spreadsheet.Detect(data)
		return name, nil
	}
	if _, err := spreadsheet.ForFormat(format); err != nil {
		return "", fileError(err)
	}
	return format, nil
}

func (s *Service) decode(data []byte, format string) (bulk.Table, string, error) {
	format, err := s.checkFile(data, format)
	if err != nil {
		return bulk.Table{}, "", err
	}
	codec, err := spreadsheet.ForFormat(format)
	if err != nil {
		return bulk.Table{}, "", fileError(err)
	}
	tbl, err := codec.Decode(data)
	if err != nil {
		return bulk.Table{}, "", fileError(err)
	}
	return tbl, format, nil
}

// fileError marks a whole-file problem as a validation error.
func fileError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Mark(err, model.ErrValidation)
}
