// Package export writes the collection as a Parquet file for downstream
// embedding and analysis tools.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/parquet-go/parquet-go"
)

// Row is one caption region flattened for columnar consumers. Records with
// no regions still contribute a single row with RegionIndex -1 so the
// template-level metadata survives the export.
type Row struct {
	Key              string `parquet:"key"`
	URL              string `parquet:"url"`
	ImageURL         string `parquet:"image_url"`
	Filename         string `parquet:"filename"`
	Width            int32  `parquet:"width"`
	Height           int32  `parquet:"height"`
	ImageDescription string `parquet:"image_description"`

	RegionIndex       int32  `parquet:"region_index"`
	RegionDescription string `parquet:"region_description"`

	Left   int32 `parquet:"left"`
	Top    int32 `parquet:"top"`
	BoxW   int32 `parquet:"box_width"`
	BoxH   int32 `parquet:"box_height"`
	HasUpd bool  `parquet:"has_updated_position"`
	UpLeft int32 `parquet:"updated_left"`
	UpTop  int32 `parquet:"updated_top"`
	UpW    int32 `parquet:"updated_width"`
	UpH    int32 `parquet:"updated_height"`
}

// Write exports records to path and returns the number of rows written.
func Write(path string, records meme.Collection) (int, error) {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(records))
	for _, key := range keys {
		rows = append(rows, recordRows(key, records[key])...)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	slog.Info("Exported collection", "path", path, "records", len(records), "rows", len(rows))
	return len(rows), nil
}

func recordRows(key string, rec *meme.Record) []Row {
	base := Row{
		Key:         key,
		URL:         rec.URL,
		ImageURL:    rec.ImageURL,
		Filename:    rec.Filename,
		Width:       int32(rec.Width),
		Height:      int32(rec.Height),
		RegionIndex: -1,
	}
	if rec.ImageDescription != nil {
		base.ImageDescription = *rec.ImageDescription
	}

	if len(rec.TextOptions) == 0 {
		return []Row{base}
	}

	rows := make([]Row, 0, len(rec.TextOptions))
	for i, opt := range rec.TextOptions {
		row := base
		row.RegionIndex = int32(i)
		row.RegionDescription = opt.Description
		row.Left = int32(opt.Position.Left)
		row.Top = int32(opt.Position.Top)
		row.BoxW = int32(opt.Position.Width)
		row.BoxH = int32(opt.Position.Height)
		if opt.UpdatedPosition != nil {
			row.HasUpd = true
			row.UpLeft = int32(opt.UpdatedPosition.Left)
			row.UpTop = int32(opt.UpdatedPosition.Top)
			row.UpW = int32(opt.UpdatedPosition.Width)
			row.UpH = int32(opt.UpdatedPosition.Height)
		}
		rows = append(rows, row)
	}
	return rows
}
