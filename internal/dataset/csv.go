package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joescharf/sentinel/internal/models"
)

// Columns is the header of a dataset file, in order.
var Columns = []string{
	"severity_score",
	"code_complexity",
	"lines_changed",
	"developer_feedbacks",
	"test_coverage",
	"past_acceptance_rate",
	"contains_security_fix",
	"review_time",
	"feedback_score",
	"priority",
	"accepted",
}

// FeatureNames are the model input columns, in training order.
var FeatureNames = Columns[:8]

// ErrMissingColumn is returned when a dataset header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// WriteCSV writes records to path, replacing any existing file.
func WriteCSV(path string, records []models.PullRequestRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer f.Close()

	if err := Write(f, records); err != nil {
		return err
	}
	return f.Close()
}

// Write encodes records as CSV with a header row.
func Write(w io.Writer, records []models.PullRequestRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			formatFloat(r.SeverityScore),
			formatFloat(r.CodeComplexity),
			strconv.Itoa(r.LinesChanged),
			strconv.Itoa(r.DeveloperFeedbacks),
			formatFloat(r.TestCoverage),
			formatFloat(r.PastAcceptanceRate),
			formatBool(r.ContainsSecurityFix),
			formatFloat(r.ReviewTime),
			formatFloat(r.FeedbackScore),
			string(r.Priority),
			formatBool(r.Accepted),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a dataset file. It fails if the file is absent, a required
// column is missing, or any cell does not parse.
func ReadCSV(path string) ([]models.PullRequestRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a dataset from r. Columns may appear in any order; extra
// columns are ignored.
func Read(r io.Reader) ([]models.PullRequestRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var records []models.PullRequestRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// rowParser accumulates the first parse error so parseRow reads linearly.
type rowParser struct {
	row []string
	idx map[string]int
	err error
}

func (p *rowParser) float(col string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.row[p.idx[col]], 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (p *rowParser) int(col string) int {
	v := p.float(col)
	if p.err == nil && v != math.Trunc(v) {
		p.err = fmt.Errorf("column %s: %v is not an integer", col, v)
	}
	return int(v)
}

func (p *rowParser) bool(col string) bool {
	if p.err != nil {
		return false
	}
	v, err := strconv.ParseBool(p.row[p.idx[col]])
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (p *rowParser) priority(col string) models.Priority {
	if p.err != nil {
		return ""
	}
	s := models.Priority(p.row[p.idx[col]])
	switch s {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
		return s
	}
	p.err = fmt.Errorf("column %s: unknown priority %q", col, s)
	return ""
}

func parseRow(row []string, idx map[string]int) (models.PullRequestRecord, error) {
	p := &rowParser{row: row, idx: idx}
	rec := models.PullRequestRecord{
		SeverityScore:       p.float("severity_score"),
		CodeComplexity:      p.float("code_complexity"),
		LinesChanged:        p.int("lines_changed"),
		DeveloperFeedbacks:  p.int("developer_feedbacks"),
		TestCoverage:        p.float("test_coverage"),
		PastAcceptanceRate:  p.float("past_acceptance_rate"),
		ContainsSecurityFix: p.bool("contains_security_fix"),
		ReviewTime:          p.float("review_time"),
		FeedbackScore:       p.float("feedback_score"),
		Priority:            p.priority("priority"),
		Accepted:            p.bool("accepted"),
	}
	return rec, p.err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
