package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
)

// SourceInfo is what the local precheck learned about an upload.
type SourceInfo struct {
	Extension string
	Header    []string
}

// CheckSourceFile rejects uploads that cannot possibly import: wrong extension,
// oversized, or no data row after the header. No network is involved.
func CheckSourceFile(file importjob.SourceFile, accepted []string, maxSize int64) (SourceInfo, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	info := SourceInfo{Extension: ext}
	if !extensionAccepted(ext, accepted) {
		return info, importjob.ErrUnsupportedFormat.WithMessage(
			"unsupported file format %q, expected one of: %s", ext, strings.Join(accepted, ", "),
		)
	}
	if maxSize > 0 && int64(len(file.Data)) > maxSize {
		return info, importjob.ErrFileTooLarge.WithMessage("file is %d bytes, the limit is %d", len(file.Data), maxSize)
	}
	if len(bytes.TrimSpace(file.Data)) == 0 {
		return info, importjob.ErrEmptyFile
	}

	var (
		rows [][]string
		err  error
	)
	switch ext {
	case ".csv":
		rows, err = readCSVRows(file.Data)
	case ".xlsx":
		rows, err = readXLSXRows(file.Data)
	default:
		// Formats without a local reader are left to the remote service.
		return info, nil
	}
	if err != nil {
		return info, importjob.ErrMalformedFile.WithMessage("file could not be read: %v", err)
	}

	header, dataRows := splitHeader(rows)
	info.Header = header
	if header == nil || dataRows == 0 {
		return info, importjob.ErrEmptyFile
	}
	return info, nil
}

func extensionAccepted(ext string, accepted []string) bool {
	for _, a := range accepted {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readCSVRows(data []byte) ([][]string, error) {
	r := csv.NewReader(stripUTF8BOM(bufio.NewReader(bytes.NewReader(data))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	nonBlank := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
		if !blankRow(rec) {
			nonBlank++
		}
		// header plus one data row is all the precheck needs
		if nonBlank == 2 {
			return rows, nil
		}
	}
}

func readXLSXRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// splitHeader treats the first non-blank row as the header and counts the
// non-blank rows after it.
func splitHeader(rows [][]string) ([]string, int) {
	var header []string
	dataRows := 0
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = make([]string, len(row))
			for i, cell := range row {
				header[i] = strings.TrimSpace(cell)
			}
			continue
		}
		dataRows++
	}
	return header, dataRows
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
