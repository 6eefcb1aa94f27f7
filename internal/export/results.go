package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"swarmlog/internal/batch"
)

// WriteResults writes one CSV row per run: Path, Status and the batch
// columns. Failed runs leave their value cells empty.
func WriteResults(w io.Writer, b *batch.Batch) error {
	cw := csv.NewWriter(w)

	header := append([]string{"Path", "Status"}, b.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, res := range b.Results {
		row := make([]string, len(header))
		row[0] = res.Path
		row[1] = res.Status.String()

		if res.Status == batch.StatusCompleted {
			for i, v := range res.Values {
				if i+2 >= len(row) {
					break
				}
				row[i+2] = strconv.FormatFloat(v.Value, 'f', -1, 64)
			}
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
