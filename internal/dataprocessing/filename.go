package dataprocessing

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// filenameParts is the minimum number of "_"-separated fields:
// metrics, rat<id>, stage<s>, session<n>, month, day, year.
const filenameParts = 7

// FilenameParser extracts FileMetadata from rig file names of the form
// metrics_rat<id>_stage<s>_session<n>_<month>_<day>_<year>[_...].<ext>.
type FilenameParser struct {
	minRatID int
	maxRatID int
	validate *validator.Validate
}

// NewFilenameParser creates a parser accepting subject ids in [minRatID, maxRatID].
func NewFilenameParser(minRatID, maxRatID int) *FilenameParser {
	return &FilenameParser{
		minRatID: minRatID,
		maxRatID: maxRatID,
		validate: validator.New(),
	}
}

// ParseFilename parses name with the default subject range [1,19].
func ParseFilename(name string) (domain.FileMetadata, error) {
	return NewFilenameParser(1, 19).Parse(name)
}

// Parse extracts subject, stage, session and date from the base name of
// path. Any directory component is ignored.
func (p *FilenameParser) Parse(path string) (domain.FileMetadata, error) {
	name := filepath.Base(path)
	meta := domain.FileMetadata{FileName: name}

	parts := strings.Split(name, "_")
	if len(parts) < filenameParts {
		return meta, invalidFilename(name, fmt.Sprintf("expected at least %d fields, got %d", filenameParts, len(parts)), nil)
	}

	var err error
	if meta.RatID, err = prefixedInt(parts[1], "rat"); err != nil {
		return meta, invalidFilename(name, "subject id", err)
	}
	stage, err := prefixedInt(parts[2], "stage")
	if err != nil {
		return meta, invalidFilename(name, "stage", err)
	}
	meta.Stage = domain.Stage(stage)
	if meta.Session, err = prefixedInt(parts[3], "session"); err != nil {
		return meta, invalidFilename(name, "session", err)
	}

	if meta.Month, err = strconv.Atoi(parts[4]); err != nil {
		return meta, invalidFilename(name, "month", err)
	}
	if meta.Day, err = strconv.Atoi(parts[5]); err != nil {
		return meta, invalidFilename(name, "day", err)
	}
	// The year field may carry the extension: "2023.csv"
	year, _, _ := strings.Cut(parts[6], ".")
	if meta.Year, err = strconv.Atoi(year); err != nil {
		return meta, invalidFilename(name, "year", err)
	}

	if !meta.Stage.Valid() {
		return meta, invalidFilename(name, fmt.Sprintf("stage %d outside 0-3", meta.Stage), nil)
	}
	if err := p.validate.Struct(meta); err != nil {
		return meta, invalidFilename(name, "date fields", err)
	}
	// time.Date normalizes 2/30 to 3/2; reject instead.
	if d := meta.Date(); d.Day() != meta.Day || int(d.Month()) != meta.Month {
		return meta, invalidFilename(name, fmt.Sprintf("no such date %d/%d/%d", meta.Month, meta.Day, meta.Year), nil)
	}

	if meta.RatID < p.minRatID || meta.RatID > p.maxRatID {
		return meta, apperrors.NewParsingError(
			fmt.Sprintf("subject id %d outside [%d,%d]", meta.RatID, p.minRatID, p.maxRatID),
			apperrors.ErrSubjectOutOfRange,
		).WithContext("file", name)
	}

	return meta, nil
}

func prefixedInt(field, prefix string) (int, error) {
	if len(field) < len(prefix) || !strings.EqualFold(field[:len(prefix)], prefix) {
		return 0, fmt.Errorf("%q lacks prefix %q", field, prefix)
	}
	return strconv.Atoi(field[len(prefix):])
}

func invalidFilename(name, what string, cause error) error {
	msg := what
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", what, cause)
	}
	return apperrors.NewParsingError(msg, apperrors.ErrInvalidFilename).WithContext("file", name)
}
