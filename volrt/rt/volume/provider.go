package volume

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/volumert/volrt/rt/core"
)

// Provider owns the active volume. A selection is loaded completely before
// it is published, so readers of Active never see a partial volume. On a
// failed load the previous volume stays active.
//
// Every Select takes a sequence number before loading. Publishing is a
// compare-and-swap that only moves forward, so a slow earlier request never
// replaces a later one.
type selection struct {
	id  DatasetID
	vol *Volume
	seq uint64
}

type Provider struct {
	catalog *Catalog
	logger  core.Logger

	active atomic.Pointer[selection]
	seq    atomic.Uint64

	mu     sync.Mutex
	loaded map[DatasetID]*Volume
}

func NewProvider(catalog *Catalog, logger core.Logger) *Provider {
	p := &Provider{
		catalog: catalog,
		logger:  core.OrNop(logger),
		loaded:  make(map[DatasetID]*Volume),
	}
	return p
}

func (p *Provider) Catalog() *Catalog { return p.catalog }

// Active returns the published volume, or nil before the first selection.
func (p *Provider) Active() *Volume {
	if s := p.active.Load(); s != nil {
		return s.vol
	}
	return nil
}

// ActiveID reports the dataset behind Active.
func (p *Provider) ActiveID() (DatasetID, bool) {
	s := p.active.Load()
	if s == nil {
		return 0, false
	}
	return s.id, true
}

// SelectByName resolves a UI name and selects it.
func (p *Provider) SelectByName(name string) (*Volume, error) {
	id, err := ParseDatasetID(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDatasetLoad, err)
	}
	return p.Select(id)
}

// Select loads id (or reuses the cached copy) and publishes it unless a
// later Select has already published.
func (p *Provider) Select(id DatasetID) (*Volume, error) {
	seq := p.seq.Add(1)
	v, err := p.load(id, false)
	if err != nil {
		return nil, err
	}
	if !p.publishNewer(seq, id, v) {
		p.logger.Debugf("select %s superseded by a later selection", id)
	}
	return v, nil
}

// Reload rereads id from disk. The result is published only when id is
// the active dataset.
func (p *Provider) Reload(id DatasetID) (*Volume, error) {
	v, err := p.load(id, true)
	if err != nil {
		return nil, err
	}
	p.replaceActive(id, v)
	return v, nil
}

// Preload loads datasets into the cache without publishing. All ids are
// attempted; the errors are joined.
func (p *Provider) Preload(ids ...DatasetID) error {
	var errs []error
	for _, id := range ids {
		if _, err := p.load(id, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishNewer stores v unless the active selection came from a request
// numbered after seq.
func (p *Provider) publishNewer(seq uint64, id DatasetID, v *Volume) bool {
	next := &selection{id: id, vol: v, seq: seq}
	for {
		cur := p.active.Load()
		if cur != nil && cur.seq > seq {
			return false
		}
		if p.active.CompareAndSwap(cur, next) {
			p.logPublished(v)
			return true
		}
	}
}

// replaceActive swaps in v only while id is still the active dataset. The
// sequence number is kept, so ordering against Select is unchanged.
func (p *Provider) replaceActive(id DatasetID, v *Volume) bool {
	for {
		cur := p.active.Load()
		if cur == nil || cur.id != id {
			return false
		}
		if p.active.CompareAndSwap(cur, &selection{id: id, vol: v, seq: cur.seq}) {
			p.logPublished(v)
			return true
		}
	}
}

func (p *Provider) logPublished(v *Volume) {
	p.logger.Infof("active volume %s (%dx%dx%d, id %s)", v.Name, v.Width, v.Height, v.Depth, v.ID)
}

func (p *Provider) load(id DatasetID, fresh bool) (*Volume, error) {
	ds, ok := p.catalog.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: dataset id %d not in catalog", core.ErrDatasetLoad, int(id))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.loaded[id]; ok && !fresh {
		return v, nil
	}

	path := p.catalog.Path(id)
	p.logger.Debugf("loading %s from %s", id, path)
	v, err := LoadFile(id.String(), path, ds.Layout)
	if err != nil {
		p.logger.Warnf("load %s: %v", id, err)
		return nil, err
	}
	p.loaded[id] = v
	return v, nil
}
