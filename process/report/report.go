// Package report summarizes prediction outputs, either from an output CSV
// or from a run stored in the database.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"imgmeasure/models"
	"imgmeasure/pkg/predict"
	"imgmeasure/process/batch"
)

// Summary counts predictions by outcome and by unit.
type Summary struct {
	Total    int
	Measured int
	Empty    int
	Invalid  int
	Failed   int
	// Units counts measured predictions per canonical unit.
	Units map[string]int
	// Entities counts rows per entity type, when known.
	Entities map[string]int
}

// Summarize classifies each result from its prediction string. Failures
// are only distinguishable when a reason was recorded.
func Summarize(results []batch.Result) Summary {
	s := Summary{Units: map[string]int{}, Entities: map[string]int{}}
	for _, r := range results {
		s.Total++
		if r.Row.EntityName != "" {
			s.Entities[r.Row.EntityName]++
		}
		switch {
		case r.Reason != "":
			s.Failed++
		case r.Prediction == predict.InvalidEntityPrediction:
			s.Invalid++
		case r.Prediction == "":
			s.Empty++
		default:
			s.Measured++
			if _, unit, ok := strings.Cut(r.Prediction, " "); ok {
				s.Units[unit]++
			}
		}
	}
	return s
}

// ReadOutput loads an "index,prediction" CSV written by the batch driver.
func ReadOutput(path string) ([]batch.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}
	if !strings.EqualFold(header[0], "index") || !strings.EqualFold(header[1], "prediction") {
		return nil, fmt.Errorf("%s: unexpected header %q", path, strings.Join(header, ","))
	}
	var out []batch.Result
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, batch.Result{Row: batch.Row{Index: rec[0]}, Prediction: rec[1]})
	}
	return out, nil
}

// FromRun loads the stored predictions of a run.
func FromRun(db *gorm.DB, runID string) (models.Run, []batch.Result, error) {
	var run models.Run
	if err := db.Where("id = ?", runID).First(&run).Error; err != nil {
		return run, nil, fmt.Errorf("run %s: %w", runID, err)
	}
	var preds []models.Prediction
	if err := db.Where("run_id = ?", runID).Order("id").Find(&preds).Error; err != nil {
		return run, nil, fmt.Errorf("predictions of run %s: %w", runID, err)
	}
	results := make([]batch.Result, len(preds))
	for i, p := range preds {
		results[i] = batch.Result{
			Row:        batch.Row{Index: p.RowIndex, ImageLink: p.ImageLink, GroupID: p.GroupID, EntityName: p.EntityName},
			Prediction: p.Value,
			Reason:     p.FailedReason,
		}
		if p.Failed && results[i].Reason == "" {
			results[i].Reason = "failed"
		}
	}
	return run, results, nil
}

// LatestRuns lists the most recent runs, newest first.
func LatestRuns(db *gorm.DB, limit int) ([]models.Run, error) {
	var runs []models.Run
	if err := db.Order("created_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// PrintRuns writes one line per run.
func PrintRuns(w io.Writer, runs []models.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tROWS\tMEASURED\tFAILED\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Rows, r.Measured, r.Failed, r.InputPath)
	}
	tw.Flush()
}

// Print renders the summary as an aligned plain-text table.
func (s Summary) Print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "rows\t%d\n", s.Total)
	fmt.Fprintf(tw, "measured\t%d\t%s\n", s.Measured, percent(s.Measured, s.Total))
	fmt.Fprintf(tw, "empty\t%d\t%s\n", s.Empty, percent(s.Empty, s.Total))
	fmt.Fprintf(tw, "invalid entity\t%d\t%s\n", s.Invalid, percent(s.Invalid, s.Total))
	if s.Failed > 0 {
		fmt.Fprintf(tw, "failed\t%d\t%s\n", s.Failed, percent(s.Failed, s.Total))
	}
	for _, k := range sortedKeys(s.Units) {
		fmt.Fprintf(tw, "unit %s\t%d\n", k, s.Units[k])
	}
	for _, k := range sortedKeys(s.Entities) {
		fmt.Fprintf(tw, "entity %s\t%d\n", k, s.Entities[k])
	}
	tw.Flush()
}

func percent(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
