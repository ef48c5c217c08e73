package volume

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DatasetID names one entry of the fixed dataset catalog.
type DatasetID int

const (
	Bonsai DatasetID = iota
	Foot
	Teapot
)

var datasetNames = [...]string{
	Bonsai: "bonsai",
	Foot:   "foot",
	Teapot: "teapot",
}

func AllDatasets() []DatasetID {
	return []DatasetID{Bonsai, Foot, Teapot}
}

func (id DatasetID) Valid() bool {
	return id >= 0 && int(id) < len(datasetNames)
}

func (id DatasetID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("DatasetID(%d)", int(id))
	}
	return datasetNames[id]
}

func ParseDatasetID(name string) (DatasetID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range datasetNames {
		if s == n {
			return DatasetID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown dataset %q", name)
}

// Layout describes how slices are tiled inside one atlas image.
type Layout struct {
	Slices       int
	SlicesPerRow int
}

func (l Layout) Rows() int {
	if l.SlicesPerRow <= 0 {
		return 0
	}
	return (l.Slices + l.SlicesPerRow - 1) / l.SlicesPerRow
}

// DefaultLayout is 256 slices in a 16x16 grid.
var DefaultLayout = Layout{Slices: 256, SlicesPerRow: 16}

type Dataset struct {
	ID     DatasetID
	File   string
	Layout Layout
}

// Catalog maps every DatasetID to its backing atlas under Dir.
type Catalog struct {
	Dir      string
	datasets [len(datasetNames)]Dataset
}

// NewCatalog registers all datasets as "<name>.raw.png" with DefaultLayout.
func NewCatalog(dir string) *Catalog {
	c := &Catalog{Dir: dir}
	for _, id := range AllDatasets() {
		c.datasets[id] = Dataset{
			ID:     id,
			File:   id.String() + ".raw.png",
			Layout: DefaultLayout,
		}
	}
	return c
}

// Set overrides a catalog entry. Only known IDs are accepted.
func (c *Catalog) Set(d Dataset) error {
	if !d.ID.Valid() {
		return fmt.Errorf("catalog: invalid dataset id %d", int(d.ID))
	}
	c.datasets[d.ID] = d
	return nil
}

func (c *Catalog) Get(id DatasetID) (Dataset, bool) {
	if !id.Valid() {
		return Dataset{}, false
	}
	return c.datasets[id], true
}

func (c *Catalog) Path(id DatasetID) string {
	d, ok := c.Get(id)
	if !ok {
		return ""
	}
	if filepath.IsAbs(d.File) {
		return d.File
	}
	return filepath.Join(c.Dir, d.File)
}
