package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath derives "<name>_out.csv" next to a dataset file.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_out.csv"
}

// IsOutputFile reports whether name looks like a file written by WriteOutput.
func IsOutputFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(filepath.Base(name)), "_out.csv")
}

// WriteOutput writes "index,prediction" rows in order. The file is written
// to a temporary name and renamed so readers never see a partial output.
func WriteOutput(path string, results []Result) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write([]string{"index", "prediction"})
	for _, r := range results {
		_ = w.Write([]string{r.Row.Index, r.Prediction})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
