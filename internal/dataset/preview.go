package dataset

import (
	"dataexplorer/adapters/excel"
	domain "dataexplorer/domain/dataset"
)

// RecordReader splits a binary tabular payload into records
type RecordReader interface {
	ReadRecords(body []byte) ([][]string, error)
}

// PreviewBuilder picks the decoder for a cleaned file by its name: workbooks go
// through the sheet reader, everything else is treated as delimited text.
type PreviewBuilder struct {
	materializer *Materializer
	sheets       RecordReader
}

// NewPreviewBuilder creates a builder; sheets may be nil to disable workbook previews
func NewPreviewBuilder(opts Options, sheets RecordReader) *PreviewBuilder {
	return &PreviewBuilder{materializer: NewMaterializer(opts), sheets: sheets}
}

// Build materializes the cleaned file body into the bounded preview
func (b *PreviewBuilder) Build(filename string, body []byte) (*domain.Table, error) {
	if b.sheets != nil && excel.IsWorkbook(filename) {
		records, err := b.sheets.ReadRecords(body)
		if err != nil {
			return nil, err
		}
		return b.materializer.FromRecords(records), nil
	}
	return b.materializer.Materialize(string(body))
}
