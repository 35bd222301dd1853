package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kaitori-compare/backend/internal/domain"
)

const sheetName = "買取価格比較"

// BuildXLSX renders the same comparison table as an XLSX workbook.
// Prices land as numeric cells so spreadsheet formulas work on them
// without the CSV's string-to-number coercion.
func BuildXLSX(records []domain.ProductRecord) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	// Drop the default sheet so the workbook opens on the table
	_ = f.DeleteSheet("Sheet1")

	columns := shopColumns(records)

	write := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheetName, cell, v)
	}

	if err := write(1, 1, "商品名"); err != nil {
		return nil, err
	}
	if err := write(1, 2, "身分証"); err != nil {
		return nil, err
	}
	if err := write(1, 3, "着払い"); err != nil {
		return nil, err
	}
	for i, name := range columns {
		info := shopInfoFor(name)
		if err := write(i+2, 1, name); err != nil {
			return nil, err
		}
		if err := write(i+2, 2, info.IDRequired); err != nil {
			return nil, err
		}
		if err := write(i+2, 3, info.CashOnDelivery); err != nil {
			return nil, err
		}
	}

	for r, record := range records {
		row := r + 4
		if err := write(1, row, record.ProductName); err != nil {
			return nil, err
		}
		for c, name := range columns {
			offer, ok := record.Offer(name)
			if !ok || offer.BuyPrice <= 0 {
				continue
			}
			if err := write(c+2, row, offer.BuyPrice); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("could not write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
