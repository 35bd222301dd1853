package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/kaitori-compare/backend/internal/domain"
)

// utf8BOM makes spreadsheet applications detect the encoding; without it
// Excel renders the Japanese shop names as mojibake.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BuildCSV renders the comparison table as UTF-8 CSV with a leading
// byte-order marker. Columns are the product name plus one column per
// distinct shop in first-seen order; two header rows carry the static
// per-shop metadata; data rows leave blanks for shops that offered
// nothing or offered zero.
func BuildCSV(records []domain.ProductRecord) ([]byte, error) {
	columns := shopColumns(records)

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	// csv.NewWriter handles quoting, commas inside fields, line endings
	w := csv.NewWriter(&buf)

	header := append([]string{"商品名"}, columns...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("could not write header: %w", err)
	}

	idRow := []string{"身分証"}
	codRow := []string{"着払い"}
	for _, name := range columns {
		info := shopInfoFor(name)
		idRow = append(idRow, info.IDRequired)
		codRow = append(codRow, info.CashOnDelivery)
	}
	if err := w.Write(idRow); err != nil {
		return nil, fmt.Errorf("could not write metadata row: %w", err)
	}
	if err := w.Write(codRow); err != nil {
		return nil, fmt.Errorf("could not write metadata row: %w", err)
	}

	for _, record := range records {
		row := []string{record.ProductName}
		for _, name := range columns {
			row = append(row, priceCell(record, name))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("could not write record row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
