// Package bulk imports scorecards from spreadsheet tables and exports them
// back in the same column layout.
//
// Each row moves through parse, validate, resolve, score and persist. A row
// that fails at any step is reported as "Row N: reason" and the next row is
// processed; only file-level problems (no header, missing columns, too many
// rows) abort the import.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

const defaultMaxRows = 10_000

// Resolver finds the agent a row refers to.
type Resolver interface {
	ResolveAgent(ctx context.Context, identifier string) (model.Agent, error)
}

// WriteFunc persists one scorecard, including any cache invalidation.
type WriteFunc func(ctx context.Context, w model.ScorecardWrite) (model.ScorecardRecord, error)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithMaxRows caps the number of data rows per file.
func WithMaxRows(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxRows = n
		}
	}
}

// WithCalculator supplies the weight defaults used for rows without weights.
func WithCalculator(c *scoring.Calculator) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.calc = c
		}
	}
}

// WithNotFound names the error the resolver returns for an unknown
// identifier. Rows failing with it report the agent as not found; any other
// resolver error is reported as is.
func WithNotFound(target error) Option {
	return func(p *Pipeline) {
		p.notFound = target
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// Pipeline runs imports row by row.
type Pipeline struct {
	resolver Resolver
	write    WriteFunc
	calc     *scoring.Calculator
	validate *validator.Validate
	maxRows  int
	notFound error
	log      logger.Logger
}

// NewPipeline creates a pipeline that resolves agents through resolver and
// persists through write.
func NewPipeline(resolver Resolver, write WriteFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		write:    write,
		calc:     scoring.NewCalculator(),
		validate: newValidator(),
		maxRows:  defaultMaxRows,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run imports every data row of t on behalf of actor. The returned error is
// non-nil only when the file as a whole cannot be imported.
func (p *Pipeline) Run(ctx context.Context, t Table, actor string) (model.ImportResult, error) {
	start := time.Now()
	if len(t.Header) == 0 {
		return model.ImportResult{}, ErrEmptyFile
	}
	l, err := parseLayout(t.Header)
	if err != nil {
		return model.ImportResult{}, err
	}

	rows := nonBlank(t)
	if len(rows) > p.maxRows {
		return model.ImportResult{}, errors.Wrapf(ErrTooManyRows, "%d rows, limit %d", len(rows), p.maxRows)
	}

	res := model.ImportResult{Total: len(rows), Errors: make([]string, 0)}
	for _, r := range rows {
		err := r.err
		if err == nil {
			err = p.importRow(ctx, r.line, r.cells, l, actor)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", r.line, err.Error()))
			p.log.Debug(ctx, "import row failed", logger.Int("row", r.line), logger.Error(err))
			continue
		}
		res.Imported++
	}
	res.Success = len(res.Errors) == 0

	metrics.RecordImportRows("imported", res.Imported)
	metrics.RecordImportRows("failed", len(res.Errors))
	metrics.RecordImportDuration(float64(time.Since(start).Milliseconds()))
	p.log.Info(ctx, "import finished",
		logger.String("actor", actor),
		logger.Int("total", res.Total),
		logger.Int("imported", res.Imported),
		logger.Int("failed", len(res.Errors)),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) importRow(ctx context.Context, line int, cells []string, l layout, actor string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "import cancelled")
	}

	row, err := parseRow(line, cells, l)
	if err != nil {
		return err
	}
	if err := validateRow(p.validate, row); err != nil {
		return err
	}

	agent, err := p.resolver.ResolveAgent(ctx, row.Identifier)
	if err != nil {
		if p.notFound != nil && errors.Is(err, p.notFound) {
			return errors.WithSecondaryError(errors.Newf("agent %q not found", row.Identifier), err)
		}
		return errors.Wrapf(err, "resolve agent %q", row.Identifier)
	}

	_, err = p.write(ctx, model.ScorecardWrite{
		AgentID: agent.ID,
		Period:  row.Period(),
		Metrics: row.Metrics(),
		Weights: p.calc.ResolveWeights(row.Weights, agent.Weights),
		Notes:   row.Notes,
		Actor:   actor,
	})
	return err
}

type dataRow struct {
	line  int
	cells []string
	err   error
}

// nonBlank numbers data rows from 1 and skips rows without any content.
// Malformed rows are kept so they are reported.
func nonBlank(t Table) []dataRow {
	out := make([]dataRow, 0, len(t.Rows))
	for i, r := range t.Rows {
		if err, bad := t.Malformed[i+1]; bad {
			out = append(out, dataRow{line: i + 1, err: err})
			continue
		}
		empty := true
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, dataRow{line: i + 1, cells: r})
		}
	}
	return out
}
