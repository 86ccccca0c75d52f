package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	"github.com/okian/scorecard/internal/domain/bulk"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

// ExportRequest filters an export. Nil bounds and an empty agent list mean
// no filter.
type ExportRequest struct {
	Format   string
	From     *model.Period
	To       *model.Period
	AgentIDs []string
}

// ExportFile is a rendered export.
type ExportFile struct {
	Filename    string
	ContentType string
	Records     int
	Body        []byte
}

// Export renders records in the import column layout, so the file can be
// imported again unchanged.
func (s *Service) Export(ctx context.Context, req ExportRequest) (ExportFile, error) {
	codec, err := spreadsheet.ForFormat(req.Format)
	if err != nil {
		return ExportFile{}, fileError(err)
	}
	for _, p := range []*model.Period{req.From, req.To} {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return ExportFile{}, err
		}
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return ExportFile{}, errors.Mark(errors.Newf("range %s..%s is reversed", req.From, req.To), model.ErrValidation)
	}

	recs, err := s.store.List(ctx, repository.ExportQuery{
		AgentIDs: req.AgentIDs,
		From:     req.From,
		To:       req.To,
		Limit:    s.maxExportRecords,
	})
	if err != nil {
		return ExportFile{}, err
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return ExportFile{}, err
	}
	byID := make(map[string]model.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, bulk.Export(recs, byID)); err != nil {
		return ExportFile{}, errors.Wrap(err, "encode export")
	}
	metrics.RecordExportRecords(len(recs))
	s.logger.Info(ctx, "export rendered",
		logger.Int("records", len(recs)),
		logger.Int("bytes", buf.Len()),
	)
	return ExportFile{
		Filename:    exportName(req) + codec.Extension(),
		ContentType: codec.ContentType(),
		Records:     len(recs),
		Body:        buf.Bytes(),
	}, nil
}

func exportName(req ExportRequest) string {
	name := "scorecards"
	if req.From != nil {
		name += fmt.Sprintf("-%s", req.From)
	}
	if req.To != nil {
		name += fmt.Sprintf("-to-%s", req.To)
	}
	return name
}
