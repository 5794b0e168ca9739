// Package itemsheet reads the daily item-master sheet that lists the parts
// worked on a machine and the times work started and stopped.
package itemsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/dokzlo13/lampd/internal/interval"
	"github.com/dokzlo13/lampd/internal/logstore"
)

// Column positions of the descriptive fields.
const (
	colMachineNo   = 0
	colOrderNo     = 1
	colArrangement = 2
	colItemNo      = 3
	colItemName    = 4
	colStatus      = 8
)

// Item is one data row of a sheet. Index is 1-based, counting after the
// header.
type Item struct {
	Index         int      `json:"index"`
	MachineNo     string   `json:"machine_no"`
	OrderNo       string   `json:"order_no"`
	ArrangementNo string   `json:"arrangement_no"`
	ItemNo        string   `json:"item_no"`
	ItemName      string   `json:"item_name"`
	Status        string   `json:"status"`
	Row           []string `json:"-"`
}

// Sheet is a parsed item sheet.
type Sheet struct {
	Date    civil.Date
	Name    string
	Headers []string
	Items   []Item
}

// FileName returns the expected sheet name for a date: <prefix>_YYYYMMDD.csv.
func FileName(prefix string, date civil.Date) string {
	return fmt.Sprintf("%s_%04d%02d%02d.csv", prefix, date.Year, int(date.Month), date.Day)
}

// Load reads the sheet of date from dir. Returns logstore.ErrNotFound when
// the file is missing or holds no rows.
func Load(dir, prefix string, date civil.Date) (*Sheet, error) {
	name := FileName(prefix, date)
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, logstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read item sheet: %w", err)
	}

	rows, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse item sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", name, logstore.ErrNotFound)
	}

	sheet := &Sheet{Date: date, Name: name, Headers: rows[0]}
	for i, row := range rows[1:] {
		sheet.Items = append(sheet.Items, newItem(i+1, row))
	}
	return sheet, nil
}

// parse decodes the sheet as UTF-8 when valid and as Shift-JIS otherwise,
// then splits it into non-empty CSV records.
func parse(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		r = transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	return len(rec) == 0 || (len(rec) == 1 && rec[0] == "")
}

func newItem(index int, row []string) Item {
	col := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Item{
		Index:         index,
		MachineNo:     col(colMachineNo),
		OrderNo:       col(colOrderNo),
		ArrangementNo: col(colArrangement),
		ItemNo:        col(colItemNo),
		ItemName:      col(colItemName),
		Status:        col(colStatus),
		Row:           row,
	}
}

// Item returns the item with the given 1-based index.
func (s *Sheet) Item(index int) (Item, bool) {
	if index < 1 || index > len(s.Items) {
		return Item{}, false
	}
	return s.Items[index-1], true
}

// Active is an item being worked on at a given instant.
type Active struct {
	Item      Item                `json:"item"`
	Intervals []interval.Interval `json:"-"`
	Label     string              `json:"intervals"`
}

// CurrentItems returns the items being worked on at now. An interval with
// no stop ends at the extractor's now and still counts as in progress there.
func CurrentItems(sheet *Sheet, ex *interval.Extractor, now time.Time) []Active {
	var out []Active
	for _, item := range sheet.Items {
		ivs := ex.FromRow(sheet.Date, item.Row)
		for _, iv := range ivs {
			if iv.Contains(now) || (iv.Open && now.Equal(iv.End)) {
				out = append(out, Active{Item: item, Intervals: ivs, Label: interval.Label(ivs)})
				break
			}
		}
	}
	return out
}
