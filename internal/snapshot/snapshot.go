package snapshot

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"stormguard/internal/model"
	"stormguard/internal/state"
)

// Table file names inside a snapshot directory.
const (
	StoresFile    = "stores.csv"
	ProductsFile  = "products.csv"
	SalesFile     = "sales_history.csv"
	InventoryFile = "inventory.csv"
	EventsFile    = "known_events.csv"
	StormFile     = "hurricane_track.csv"
	SummaryFile   = "summary_stats.txt"
	StateFile     = "velocity_state.json"
)

var namespace = uuid.MustParse("7d7b6f0e-3c1a-5b8e-9f4d-2a6c1e0b5d93")

// ID derives a stable snapshot id from the generation inputs, so the same run
// always lands in the same directory.
func ID(seed int64, stores, products int, start, end time.Time) string {
	name := fmt.Sprintf("%d|%d|%d|%s|%s", seed, stores, products, model.FormatDate(start), model.FormatDate(end))
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// Contents is what a snapshot holds. State and Summary are optional.
type Contents struct {
	Dataset *model.Dataset
	State   state.Store
	Summary string
}

type Snapshotter interface {
	WriteSnapshot(snapshotID string, c Contents) error
}

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

func (f *FilesystemSnapshotter) Dir(snapshotID string) string {
	return filepath.Join(f.baseDir, snapshotID)
}

func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, c Contents) error {
	if c.Dataset == nil {
		return fmt.Errorf("snapshot %s: no dataset", snapshotID)
	}
	dir := f.Dir(snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	ds := c.Dataset
	tables := []struct {
		file    string
		columns []string
		rows    func(yield func([]string))
	}{
		{StoresFile, model.StoreColumns, each(ds.Stores, model.Store.Record)},
		{ProductsFile, model.ProductColumns, each(ds.Products, model.Product.Record)},
		{SalesFile, model.SaleColumns, each(ds.Sales, model.SaleRecord.Record)},
		{InventoryFile, model.InventoryColumns, each(ds.Inventory, model.InventoryRecord.Record)},
		{EventsFile, model.EventColumns, each(ds.Events, model.KnownEvent.Record)},
		{StormFile, model.StormColumns, each(ds.StormTrack, model.StormObservation.Record)},
	}
	for _, t := range tables {
		if err := writeCSV(filepath.Join(dir, t.file), t.columns, t.rows); err != nil {
			return fmt.Errorf("write %s: %w", t.file, err)
		}
	}
	if c.Summary != "" {
		if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(c.Summary), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", SummaryFile, err)
		}
	}
	if c.State != nil {
		if err := writeState(filepath.Join(dir, StateFile), c.State); err != nil {
			return fmt.Errorf("write %s: %w", StateFile, err)
		}
	}
	return nil
}

func each[T any](items []T, record func(T) []string) func(yield func([]string)) {
	return func(yield func([]string)) {
		for _, it := range items {
			yield(record(it))
		}
	}
}

func writeCSV(path string, columns []string, rows func(yield func([]string))) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()
	bw := bufio.NewWriter(out)
	w := csv.NewWriter(bw)
	if err := w.Write(columns); err != nil {
		return err
	}
	var werr error
	rows(func(rec []string) {
		if werr == nil {
			werr = w.Write(rec)
		}
	})
	if werr != nil {
		return werr
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return out.Close()
}

func writeState(path string, st state.Store) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	dump := make(map[string]state.PairState)
	if err := st.Range(func(key string, ps state.PairState) error {
		dump[key] = ps
		return nil
	}); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadTable reads a CSV table and checks its header against columns. Each
// row is passed to fn with its 1-based line number.
func ReadTable(path string, columns []string, fn func(line int, rec []string) error) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	r := csv.NewReader(bufio.NewReader(in))
	r.FieldsPerRecord = len(columns)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", filepath.Base(path), err)
	}
	if !slices.Equal(header, columns) {
		return fmt.Errorf("%s: unexpected header %s", filepath.Base(path), strings.Join(header, ","))
	}
	line := 1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		line++
		if err := fn(line, rec); err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
	}
}

// ReadState loads velocity_state.json; a missing file returns (nil, false, nil).
func ReadState(dir string) (map[string]state.PairState, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read state: %w", err)
	}
	var dump map[string]state.PairState
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, false, fmt.Errorf("unmarshal state: %w", err)
	}
	return dump, true, nil
}

// ReadDataset parses the CSV tables of a snapshot directory back into a
// dataset. Start and End fall back to the first and last sale dates; Seed
// and the generation range belong to the manifest.
func ReadDataset(dir string) (*model.Dataset, error) {
	ds := &model.Dataset{}
	if err := readInto(filepath.Join(dir, StoresFile), model.StoreColumns, model.ParseStore, &ds.Stores); err != nil {
		return nil, err
	}
	if err := readInto(filepath.Join(dir, ProductsFile), model.ProductColumns, model.ParseProduct, &ds.Products); err != nil {
		return nil, err
	}
	if err := readInto(filepath.Join(dir, SalesFile), model.SaleColumns, model.ParseSale, &ds.Sales); err != nil {
		return nil, err
	}
	if err := readInto(filepath.Join(dir, InventoryFile), model.InventoryColumns, model.ParseInventory, &ds.Inventory); err != nil {
		return nil, err
	}
	if err := readInto(filepath.Join(dir, EventsFile), model.EventColumns, model.ParseEvent, &ds.Events); err != nil {
		return nil, err
	}
	if err := readInto(filepath.Join(dir, StormFile), model.StormColumns, model.ParseStorm, &ds.StormTrack); err != nil {
		return nil, err
	}
	if n := len(ds.Sales); n > 0 {
		ds.Start, ds.End = ds.Sales[0].Date, ds.Sales[n-1].Date
	}
	return ds, nil
}

func readInto[T any](path string, columns []string, parse func([]string) (T, error), dst *[]T) error {
	return ReadTable(path, columns, func(_ int, rec []string) error {
		v, err := parse(rec)
		if err != nil {
			return err
		}
		*dst = append(*dst, v)
		return nil
	})
}
