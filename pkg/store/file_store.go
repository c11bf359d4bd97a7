package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/internal/hydrate"
	"github.com/goliatone/go-rendererdata/layering"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Extension is the file extension of asset documents.
const Extension = ".renderer.yaml"

var (
	// ErrAssetNotFound reports a Load for a name with no document.
	ErrAssetNotFound = errors.New("store: asset not found")
	// ErrAssetExists reports a Create for a name that already has a document.
	ErrAssetExists = errors.New("store: asset already exists")
	// ErrNotLoaded reports persistence calls for an asset this store did not
	// load or create.
	ErrNotLoaded = errors.New("store: asset not loaded by this store")
)

var assetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]*$`)

// document is the on-disk layout. Features holds the identifier each slot
// references (0 for none); FeatureMap is the parallel identifier list.
type document struct {
	GUID       string           `yaml:"guid"`
	Name       string           `yaml:"name"`
	Properties map[string]any   `yaml:"properties,omitempty"`
	Features   []int64          `yaml:"features"`
	FeatureMap []int64          `yaml:"featureMap"`
	Objects    []map[string]any `yaml:"objects"`
}

type objectRecord struct {
	ID       int64          `json:"id"`
	GUID     string         `json:"guid"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Active   bool           `json:"active"`
	Expanded bool           `json:"expanded,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// storedObject is a child of a loaded asset. Objects whose type is not
// registered keep their raw payload so they survive a save.
type storedObject struct {
	obj *rdata.Object
	raw map[string]any
}

func (o storedObject) guid() uuid.UUID {
	if o.obj != nil {
		return o.obj.ID
	}
	id, _ := uuid.Parse(fmt.Sprint(o.raw["guid"]))
	return id
}

type fileEntry struct {
	path    string
	asset   *rdata.Asset
	objects map[rdata.StableID]storedObject
}

// FileStore persists assets as YAML documents in a directory.
type FileStore struct {
	dir      string
	registry *rdata.TypeRegistry
	decoder  *hydrate.Decoder[objectRecord]

	mu      sync.Mutex
	entries map[uuid.UUID]*fileEntry
	dirty   map[uuid.UUID]bool
}

// NewFileStore returns a store rooted at dir, creating the directory when
// needed. Objects are resolved against registry; unregistered types load as
// unresolved slots.
func NewFileStore(dir string, registry *rdata.TypeRegistry) (*FileStore, error) {
	if registry == nil {
		return nil, fmt.Errorf("store: type registry is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		registry: registry,
		decoder: hydrate.New(hydrate.Options[objectRecord]{
			Renames:  legacyKeys,
			Strict:   true,
			Validate: validateRecord,
		}),
		entries: map[uuid.UUID]*fileEntry{},
		dirty:   map[uuid.UUID]bool{},
	}, nil
}

// legacyKeys maps the serialized field names of older documents.
var legacyKeys = map[string]string{"m_Name": "name", "m_Active": "active"}

func validateRecord(record *objectRecord) error {
	if record.ID == 0 {
		return fmt.Errorf("missing id")
	}
	return nil
}

// Path returns the document path for an asset name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

// List returns the names of the asset documents in the directory.
func (s *FileStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(match), Extension))
	}
	sort.Strings(names)
	return names, nil
}

// Create writes an empty asset document and returns the asset.
func (s *FileStore) Create(_ context.Context, name string) (*rdata.Asset, error) {
	if !assetNamePattern.MatchString(name) {
		return nil, fmt.Errorf("store: invalid asset name %q", name)
	}
	path := s.Path(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetExists, name)
	}
	asset := &rdata.Asset{GUID: uuid.New(), Name: name, Properties: map[string]any{}}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &fileEntry{path: path, asset: asset, objects: map[rdata.StableID]storedObject{}}
	if err := s.write(entry); err != nil {
		return nil, err
	}
	s.entries[asset.GUID] = entry
	return asset, nil
}

// Load reads the named asset. Slots whose object is missing or of an
// unregistered type are returned as nil features.
func (s *FileStore) Load(_ context.Context, name string) (*rdata.Asset, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}
	guid, err := uuid.Parse(doc.GUID)
	if err != nil {
		return nil, fmt.Errorf("store: %s: invalid guid %q: %w", path, doc.GUID, err)
	}
	if doc.Name == "" {
		doc.Name = name
	}

	entry := &fileEntry{
		path:    path,
		objects: make(map[rdata.StableID]storedObject, len(doc.Objects)),
	}
	for i, payload := range doc.Objects {
		id, stored, err := s.decodeObject(doc.Name, i, payload)
		if err != nil {
			return nil, fmt.Errorf("store: %s: %w", path, err)
		}
		entry.objects[id] = stored
	}

	asset := &rdata.Asset{
		GUID:       guid,
		Name:       doc.Name,
		Features:   make([]*rdata.Object, len(doc.Features)),
		FeatureMap: make([]rdata.StableID, len(doc.FeatureMap)),
		Properties: doc.Properties,
	}
	for i, ref := range doc.Features {
		if stored, ok := entry.objects[rdata.StableID(ref)]; ok {
			asset.Features[i] = stored.obj
		}
	}
	for i, id := range doc.FeatureMap {
		asset.FeatureMap[i] = rdata.StableID(id)
	}
	entry.asset = asset

	s.mu.Lock()
	s.entries[guid] = entry
	s.mu.Unlock()
	return asset, nil
}

func (s *FileStore) decodeObject(assetName string, index int, payload map[string]any) (rdata.StableID, storedObject, error) {
	record, err := s.decoder.Decode(hydrate.Source{Asset: assetName, Section: "objects", Index: index}, payload)
	if err != nil {
		return 0, storedObject{}, err
	}
	id := rdata.StableID(record.ID)
	info, ok := s.registry.Lookup(record.Type)
	if !ok {
		return id, storedObject{raw: layering.Map(payload)}, nil
	}
	guid, err := uuid.Parse(record.GUID)
	if err != nil {
		return 0, storedObject{}, fmt.Errorf("objects[%d]: invalid guid %q: %w", index, record.GUID, err)
	}
	return id, storedObject{obj: &rdata.Object{
		ID:       guid,
		Type:     record.Type,
		Name:     record.Name,
		Active:   record.Active,
		Expanded: record.Expanded,
		Settings: layering.Settings(record.Settings, info.Defaults),
	}}, nil
}

// Raw returns the named document decoded into generic values.
func (s *FileStore) Raw(name string) (map[string]any, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", name, err)
	}
	return out, nil
}

func (s *FileStore) entry(parent *rdata.Asset) (*fileEntry, error) {
	if parent == nil {
		return nil, fmt.Errorf("store: parent is required")
	}
	entry, ok := s.entries[parent.GUID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, parent.GUID)
	}
	return entry, nil
}

// StoreChild implements rdata.Persistence. The child is written on Flush.
func (s *FileStore) StoreChild(_ context.Context, parent *rdata.Asset, child *rdata.Object) (rdata.StableID, error) {
	if child == nil {
		return 0, fmt.Errorf("store: child is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.entry(parent)
	if err != nil {
		return 0, err
	}
	id := allocate(parent.GUID, child.ID, func(id rdata.StableID) (uuid.UUID, bool) {
		stored, ok := entry.objects[id]
		if !ok {
			return uuid.Nil, false
		}
		return stored.guid(), true
	})
	entry.objects[id] = storedObject{obj: child}
	return id, nil
}

// DeleteChild implements rdata.Persistence.
func (s *FileStore) DeleteChild(_ context.Context, parent *rdata.Asset, child *rdata.Object) error {
	if child == nil {
		return fmt.Errorf("store: child is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.entry(parent)
	if err != nil {
		return err
	}
	for id, stored := range entry.objects {
		if stored.guid() == child.ID {
			delete(entry.objects, id)
			s.dirty[parent.GUID] = true
			return nil
		}
	}
	return fmt.Errorf("store: child %s not found in %s", child.ID, entry.path)
}

// Children implements rdata.Persistence. Objects of unregistered types are
// not loadable and are left out.
func (s *FileStore) Children(_ context.Context, parent *rdata.Asset) ([]rdata.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.entry(parent)
	if err != nil {
		return nil, err
	}
	out := make([]rdata.Child, 0, len(entry.objects))
	for id, stored := range entry.objects {
		if stored.obj != nil {
			out = append(out, rdata.Child{ID: id, Object: stored.obj})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkDirty implements rdata.Persistence.
func (s *FileStore) MarkDirty(_ context.Context, parent *rdata.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.entry(parent); err != nil {
		return err
	}
	s.dirty[parent.GUID] = true
	return nil
}

// Flush implements rdata.Persistence by rewriting every dirty document.
func (s *FileStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for guid := range s.dirty {
		entry, ok := s.entries[guid]
		if !ok {
			delete(s.dirty, guid)
			continue
		}
		if err := s.write(entry); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(s.dirty, guid)
	}
	return errors.Join(errs...)
}

// write encodes entry and replaces its document through a temporary file.
func (s *FileStore) write(entry *fileEntry) error {
	asset := entry.asset
	doc := document{
		GUID:       asset.GUID.String(),
		Name:       asset.Name,
		Properties: asset.Properties,
		Features:   make([]int64, len(asset.Features)),
		FeatureMap: make([]int64, len(asset.FeatureMap)),
	}
	idOf := make(map[uuid.UUID]rdata.StableID, len(entry.objects))
	ids := make([]rdata.StableID, 0, len(entry.objects))
	for id, stored := range entry.objects {
		idOf[stored.guid()] = id
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i, obj := range asset.Features {
		if obj != nil {
			doc.Features[i] = int64(idOf[obj.ID])
		} else if i < len(asset.FeatureMap) {
			// keep the reference so a later repair can relink the slot
			doc.Features[i] = int64(asset.FeatureMap[i])
		}
	}
	for i, id := range asset.FeatureMap {
		doc.FeatureMap[i] = int64(id)
	}
	for _, id := range ids {
		doc.Objects = append(doc.Objects, encodeObject(id, entry.objects[id]))
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", entry.path, err)
	}
	tmp := entry.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, entry.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", entry.path, err)
	}
	return nil
}

func encodeObject(id rdata.StableID, stored storedObject) map[string]any {
	if stored.obj == nil {
		out := layering.Map(stored.raw)
		out["id"] = int64(id)
		return out
	}
	obj := stored.obj
	out := map[string]any{
		"id":     int64(id),
		"guid":   obj.ID.String(),
		"type":   obj.Type,
		"name":   obj.Name,
		"active": obj.Active,
	}
	if obj.Expanded {
		out["expanded"] = true
	}
	if len(obj.Settings) > 0 {
		out["settings"] = layering.Map(obj.Settings)
	}
	return out
}
