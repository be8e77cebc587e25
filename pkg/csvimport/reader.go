package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

var (
	// ErrMalformedCSV means the upload could not be parsed as CSV at all.
	ErrMalformedCSV = errors.New("malformed csv")
	// ErrNoRows means the upload has a header but no data rows, or nothing at all.
	ErrNoRows = errors.New("csv has no data rows")
)

// Column names per logical field, preferred name first, then legacy aliases.
// The English names match the export header so exports can be re-imported.
var (
	IDColumns       = []string{"id", "ID", "编号"}
	TypeColumns     = []string{"问题类型", "客诉类型", "类型", "type"}
	DateColumns     = []string{"异动时间区间", "日期", "时间", "date"}
	ContentColumns  = []string{"异动原因", "客诉内容", "内容", "content"}
	ProductColumns  = []string{"产品类型", "产品", "product"}
	PriorityColumns = []string{"优先级", "priority"}
	StatusColumns   = []string{"状态", "status"}
)

// Row is one parsed CSV row keyed by (trimmed) header name.
type Row map[string]string

// Lookup returns the value of the first column present in the row.
// A present but empty cell still wins over later aliases.
func (r Row) Lookup(columns []string) (string, bool) {
	for _, c := range columns {
		if v, ok := r[c]; ok {
			return v, true
		}
	}
	return "", false
}

// ReadRows parses a CSV upload into rows. The first line is the header.
// UTF-8 input may carry a BOM; anything that is not valid UTF-8 is decoded as GB18030.
func ReadRows(r io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	// rows may be shorter or longer than the header
	reader.FieldsPerRecord = -1

	var header []string
	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		if header == nil {
			header = make([]string, len(record))
			for i, name := range record {
				header[i] = strings.TrimSpace(name)
			}
			continue
		}

		row := make(Row, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Parse reads a CSV upload and normalizes every row into a Feedback record.
// No row is rejected: unresolvable fields fall back to their defaults.
func Parse(r io.Reader, now time.Time) ([]types.Feedback, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	records := make([]types.Feedback, 0, len(rows))
	for i, row := range rows {
		records = append(records, NormalizeRow(row, i, now))
	}
	return records, nil
}

// NormalizeRow assembles one record from a row. index and now feed the
// generated id when the row carries none.
func NormalizeRow(row Row, index int, now time.Time) types.Feedback {
	id, _ := row.Lookup(IDColumns)
	id = strings.TrimSpace(id)
	if id == "" {
		id = fmt.Sprintf("%d-%d", now.UnixMilli(), index)
	}

	rawType, _ := row.Lookup(TypeColumns)
	rawDate, _ := row.Lookup(DateColumns)
	content, _ := row.Lookup(ContentColumns)

	product, _ := row.Lookup(ProductColumns)
	product = strings.TrimSpace(product)
	if product == "" {
		product = types.DefaultProduct
	}

	rawPriority, _ := row.Lookup(PriorityColumns)
	rawStatus, _ := row.Lookup(StatusColumns)

	return types.Feedback{
		ID:       id,
		Type:     NormalizeIssueType(rawType),
		Content:  content,
		Date:     NormalizeDateFromRange(rawDate),
		Product:  product,
		Status:   NormalizeStatus(rawStatus),
		Priority: NormalizePriority(rawPriority),
	}
}

func decodeText(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: undecodable text: %v", ErrMalformedCSV, err)
		}
		return decoded, nil
	}

	text, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	return text, nil
}
