package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/cache"
	"github.com/etesami/template-matching-demo/pkg/matching"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"
)

var ErrUnknownPair = errors.New("unknown pair")

// PairDefinition represents a pair in the YAML file
type PairDefinition struct {
	Name      string  `yaml:"name"`
	Template  string  `yaml:"template"`
	Scene     string  `yaml:"scene"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

// PairFile represents the structure of a pairs YAML file
type PairFile struct {
	Pairs []PairDefinition `yaml:"pairs"`
}

// Pair is a loaded template/scene pair. The Mats are read-only once
// registered and are released by Registry.Close.
type Pair struct {
	Name      string
	Threshold float64
	Template  gocv.Mat
	Scene     gocv.Mat

	// content hashes of the raw pixels, used as memo keys
	TemplateKey cache.Key
	SceneKey    cache.Key
}

func (p *Pair) Info() api.PairInfo {
	return api.PairInfo{
		Name:           p.Name,
		TemplateWidth:  p.Template.Cols(),
		TemplateHeight: p.Template.Rows(),
		SceneWidth:     p.Scene.Cols(),
		SceneHeight:    p.Scene.Rows(),
		Threshold:      p.Threshold,
	}
}

// Registry holds the named pairs served by the matcher.
type Registry struct {
	mu    sync.RWMutex
	pairs map[string]*Pair
}

func New() *Registry {
	return &Registry{pairs: make(map[string]*Pair)}
}

// LoadFromFile reads a pairs YAML file. Image paths are resolved relative to
// the file's directory.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file %s: %w", path, err)
	}

	var pf PairFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pairs YAML: %w", err)
	}
	if len(pf.Pairs) == 0 {
		return nil, fmt.Errorf("pairs file %s defines no pairs", path)
	}

	base := filepath.Dir(path)
	r := New()
	for i, def := range pf.Pairs {
		if def.Name == "" {
			r.Close()
			return nil, fmt.Errorf("pair %d: name cannot be empty", i+1)
		}
		if def.Template == "" || def.Scene == "" {
			r.Close()
			return nil, fmt.Errorf("pair %d (%s): template and scene are required", i+1, def.Name)
		}

		template, err := readImage(resolve(base, def.Template))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("pair %s: %w", def.Name, err)
		}
		scene, err := readImage(resolve(base, def.Scene))
		if err != nil {
			template.Close()
			r.Close()
			return nil, fmt.Errorf("pair %s: %w", def.Name, err)
		}
		if err := r.Add(def.Name, template, scene, def.Threshold); err != nil {
			template.Close()
			scene.Close()
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func readImage(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Mat{}, fmt.Errorf("image not found: %s", path)
	}
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to decode image: %s", path)
	}
	return img, nil
}

// Add registers a pair and takes ownership of both Mats. A zero threshold
// falls back to matching.DefaultThreshold.
func (r *Registry) Add(name string, template, scene gocv.Mat, threshold float64) error {
	if name == "" {
		return fmt.Errorf("pair name cannot be empty")
	}
	if template.Empty() || scene.Empty() {
		return fmt.Errorf("pair %s: %w", name, matching.ErrEmptyImage)
	}
	if template.Rows() > scene.Rows() || template.Cols() > scene.Cols() {
		return fmt.Errorf("pair %s: %w", name, matching.ErrTemplateTooLarge)
	}
	if threshold == 0 {
		threshold = matching.DefaultThreshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[name]; ok {
		return fmt.Errorf("duplicate pair name: %s", name)
	}
	r.pairs[name] = &Pair{
		Name:        name,
		Threshold:   threshold,
		Template:    template,
		Scene:       scene,
		TemplateKey: matKey(template),
		SceneKey:    matKey(scene),
	}
	return nil
}

func matKey(m gocv.Mat) cache.Key {
	dims := fmt.Sprintf("%dx%dx%d", m.Rows(), m.Cols(), m.Channels())
	return cache.KeyOf([]byte(dims), m.ToBytes())
}

func (r *Registry) Get(name string) (*Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, name)
	}
	return p, nil
}

// List returns the pairs sorted by name.
func (r *Registry) List() []api.PairInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]api.PairInfo, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close releases every registered image.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.pairs {
		p.Template.Close()
		p.Scene.Close()
		delete(r.pairs, name)
	}
}
