package service

import (
	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/domain/model"
)

// Sentinel kinds for service errors.
var (
	ErrFileTooLarge = errors.Mark(errors.New("import file too large"), model.ErrValidation)
	ErrJobNotFound  = errors.Mark(errors.New("import job not found"), repository.ErrNotFound)
)
