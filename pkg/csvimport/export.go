package csvimport

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

type exportRow struct {
	ID       string `csv:"id"`
	Type     string `csv:"type"`
	Content  string `csv:"content"`
	Date     string `csv:"date"`
	Product  string `csv:"product"`
	Status   string `csv:"status"`
	Priority string `csv:"priority"`
}

// Export writes records as CSV with the header id,type,content,date,product,status,priority.
func Export(w io.Writer, records []types.Feedback) error {
	rows := make([]*exportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &exportRow{
			ID:       r.ID,
			Type:     r.Type,
			Content:  r.Content,
			Date:     r.Date,
			Product:  r.Product,
			Status:   string(r.Status),
			Priority: string(r.Priority),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}
