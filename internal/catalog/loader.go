package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/bumpstory/internal/journey"
	"github.com/terra-clan/bumpstory/internal/models"
)

// Common errors
var (
	ErrStoryNotFound    = errors.New("story not found")
	ErrPathNotFound     = errors.New("learning path not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateStory   = errors.New("duplicate story id")
)

// Loader manages loading and caching of the story catalog.
// Reference data is immutable once loaded; readers get copies.
type Loader struct {
	mu         sync.RWMutex
	categories map[models.CategoryID]*models.Category
	stories    map[int]*models.Story
	paths      map[string]*models.LearningPath
	presets    []models.FilterPreset

	// ordered is stories sorted by ID, rebuilt on every mutation
	ordered []models.Story
}

// NewLoader creates an empty catalog
func NewLoader() *Loader {
	return &Loader{
		categories: make(map[models.CategoryID]*models.Category),
		stories:    make(map[int]*models.Story),
		paths:      make(map[string]*models.LearningPath),
	}
}

// LoadFromDir loads the catalog tree:
//
//	<dir>/categories/<id>/category.yaml
//	<dir>/categories/<id>/stories/*.yaml
//	<dir>/paths/*.yaml
//	<dir>/presets.yaml
//
// Malformed files are logged and skipped. A duplicate story ID aborts the load.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading catalog from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat catalog dir: %w", err)
	}

	if err := l.loadCategories(filepath.Join(dir, "categories")); err != nil {
		return err
	}

	if err := l.loadPaths(filepath.Join(dir, "paths")); err != nil {
		slog.Warn("failed to load learning paths", "error", err)
	}

	if err := l.loadPresets(filepath.Join(dir, "presets.yaml")); err != nil {
		slog.Warn("failed to load presets", "error", err)
	}

	stats := l.Stats()
	slog.Info("catalog loaded",
		"categories", len(stats.ByCategory),
		"stories", stats.Stories,
		"paths", stats.Paths,
	)
	return nil
}

// --- Accessors ---

// Stories returns all stories sorted by ID
func (l *Loader) Stories() []models.Story {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.Story, len(l.ordered))
	copy(result, l.ordered)
	return result
}

// Story returns a story by ID
func (l *Loader) Story(id int) (models.Story, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.stories[id]
	if !ok {
		return models.Story{}, ErrStoryNotFound
	}
	return *s, nil
}

// HasStory reports whether id is in the catalog
func (l *Loader) HasStory(id int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.stories[id]
	return ok
}

// StoriesByCategory returns the stories of one category sorted by ID
func (l *Loader) StoriesByCategory(id models.CategoryID) []models.Story {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []models.Story
	for _, s := range l.ordered {
		if s.Category == id {
			result = append(result, s)
		}
	}
	return result
}

// Categories returns all categories ordered by their display order, then ID
func (l *Loader) Categories() []models.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.Category, 0, len(l.categories))
	for _, c := range l.categories {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Category returns a category by ID
func (l *Loader) Category(id models.CategoryID) (models.Category, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.categories[id]
	if !ok {
		return models.Category{}, ErrCategoryNotFound
	}
	return *c, nil
}

// Paths returns all learning paths sorted by ID
func (l *Loader) Paths() []models.LearningPath {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.LearningPath, 0, len(l.paths))
	for _, p := range l.paths {
		result = append(result, clonePath(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Path returns a learning path by ID
func (l *Loader) Path(id string) (models.LearningPath, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.paths[id]
	if !ok {
		return models.LearningPath{}, ErrPathNotFound
	}
	return clonePath(p), nil
}

// Presets returns the built-in presets followed by presets from presets.yaml
func (l *Loader) Presets() []models.FilterPreset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := journey.BuiltInPresets()
	return append(result, l.presets...)
}

// Stats returns story counts per category, difficulty and trimester
func (l *Loader) Stats() models.CatalogStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := models.CatalogStats{
		Stories:      len(l.ordered),
		Paths:        len(l.paths),
		ByCategory:   make(map[models.CategoryID]int, len(l.categories)),
		ByDifficulty: make(map[models.Difficulty]int),
		ByTrimester:  make(map[models.Trimester]int),
	}
	for id := range l.categories {
		stats.ByCategory[id] = 0
	}
	for _, s := range l.ordered {
		stats.ByCategory[s.Category]++
		stats.ByDifficulty[s.Difficulty]++
		stats.ByTrimester[s.RecommendedTrimester]++
	}
	return stats
}

// --- Programmatic registration ---

// AddCategory registers a category
func (l *Loader) AddCategory(c models.Category) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.categories[c.ID] = &c
	l.recountLocked()
}

// AddStory validates and registers a story
func (l *Loader) AddStory(s models.Story) error {
	if err := validateStory(&s); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.stories[s.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateStory, s.ID)
	}
	l.stories[s.ID] = &s
	l.rebuildLocked()
	return nil
}

// AddPath validates and registers a learning path against the loaded stories
func (l *Loader) AddPath(p models.LearningPath) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validatePathLocked(&p); err != nil {
		return err
	}
	l.paths[p.ID] = &p
	return nil
}

// --- Catalog loading ---

// loadCategories scans for category.yaml directories and their stories
func (l *Loader) loadCategories(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read categories directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		categoryDir := filepath.Join(dir, entry.Name())
		categoryYaml := filepath.Join(categoryDir, "category.yaml")

		if _, err := os.Stat(categoryYaml); os.IsNotExist(err) {
			continue // not a category directory
		}

		category, err := loadCategory(entry.Name(), categoryYaml)
		if err != nil {
			slog.Warn("failed to load category", "dir", entry.Name(), "error", err)
			continue
		}
		l.AddCategory(*category)

		storiesDir := filepath.Join(categoryDir, "stories")
		if _, err := os.Stat(storiesDir); err != nil {
			continue
		}
		if err := l.loadStories(category.ID, storiesDir); err != nil {
			return err
		}

		slog.Info("catalog category loaded", "id", category.ID, "name", category.Name)
	}

	return nil
}

// loadCategory parses a single category.yaml
func loadCategory(id, path string) (*models.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category.yaml: %w", err)
	}

	var cf categoryFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse category.yaml: %w", err)
	}

	name := cf.Name
	if name == "" {
		name = id
	}

	return &models.Category{
		ID:          models.CategoryID(id),
		Name:        name,
		Description: cf.Description,
		Icon:        cf.Icon,
		Order:       cf.Order,
	}, nil
}

// loadStories loads all story YAML files of a category
func (l *Loader) loadStories(category models.CategoryID, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read stories dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		storyPath := filepath.Join(dir, entry.Name())
		story, err := loadStory(category, storyPath)
		if err != nil {
			slog.Warn("failed to load story", "file", storyPath, "error", err)
			continue
		}

		if err := l.AddStory(*story); err != nil {
			if errors.Is(err, ErrDuplicateStory) {
				return fmt.Errorf("%s: %w", storyPath, err)
			}
			slog.Warn("invalid story", "file", storyPath, "error", err)
		}
	}

	return nil
}

// loadStory parses a single story YAML file
func loadStory(category models.CategoryID, path string) (*models.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}

	var sf storyFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse story YAML: %w", err)
	}

	if sf.Category != "" && models.CategoryID(sf.Category) != category {
		return nil, fmt.Errorf("story category %q does not match directory %q", sf.Category, category)
	}

	trimester := models.Trimester(sf.Trimester)
	if trimester == "" {
		trimester = models.TrimesterAny
	}

	return &models.Story{
		ID:                   sf.ID,
		Category:             category,
		Difficulty:           models.Difficulty(sf.Difficulty),
		Duration:             sf.Duration,
		RecommendedTrimester: trimester,
		Title:                sf.Title,
		Description:          sf.Description,
		Content:              sf.Content,
		AudioURL:             sf.AudioURL,
		ImageURL:             sf.ImageURL,
		Tags:                 sf.Tags,
	}, nil
}

// loadPaths loads all learning path files
func (l *Loader) loadPaths(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read paths dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read path file", "file", path, "error", err)
			continue
		}

		var pf pathFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			slog.Warn("failed to parse path YAML", "file", path, "error", err)
			continue
		}

		// Use id from YAML, fall back to filename without extension
		id := pf.ID
		if id == "" {
			id = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}

		if err := l.AddPath(models.LearningPath{
			ID:          id,
			Name:        pf.Name,
			Description: pf.Description,
			StoryIDs:    pf.Stories,
		}); err != nil {
			slog.Warn("invalid learning path", "file", path, "error", err)
			continue
		}

		slog.Info("learning path loaded", "id", id, "stories", len(pf.Stories))
	}

	return nil
}

// loadPresets loads optional extra presets
func (l *Loader) loadPresets(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read presets file: %w", err)
	}

	var pf presetsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse presets YAML: %w", err)
	}

	reserved := make(map[string]bool)
	for _, p := range journey.BuiltInPresets() {
		reserved[p.ID] = true
	}

	l.mu.RLock()
	hasCategory := func(id models.CategoryID) bool {
		_, ok := l.categories[id]
		return ok
	}

	presets := make([]models.FilterPreset, 0, len(pf.Presets))
	for _, p := range pf.Presets {
		if p.ID == "" || p.Name == "" {
			slog.Warn("skipping preset without id or name", "id", p.ID)
			continue
		}
		if reserved[p.ID] {
			slog.Warn("skipping preset with duplicate id", "id", p.ID)
			continue
		}
		filters := p.Filters.toState()
		if err := journey.ValidateFilterState(filters, hasCategory); err != nil {
			slog.Warn("skipping invalid preset", "id", p.ID, "error", err)
			continue
		}
		reserved[p.ID] = true
		presets = append(presets, models.FilterPreset{
			ID:        p.ID,
			Name:      p.Name,
			IsBuiltIn: true,
			Filters:   filters,
		})
	}
	l.mu.RUnlock()

	l.mu.Lock()
	l.presets = presets
	l.mu.Unlock()
	return nil
}

// --- Validation ---

func validateStory(s *models.Story) error {
	if s.ID <= 0 {
		return fmt.Errorf("story id must be positive, got %d", s.ID)
	}
	if s.Title == "" {
		return fmt.Errorf("story %d: title is required", s.ID)
	}
	if s.Duration <= 0 {
		return fmt.Errorf("story %d: duration must be positive", s.ID)
	}
	if !s.Difficulty.Valid() {
		return fmt.Errorf("story %d: unknown difficulty %q", s.ID, s.Difficulty)
	}
	if !s.RecommendedTrimester.Valid() {
		return fmt.Errorf("story %d: unknown trimester %q", s.ID, s.RecommendedTrimester)
	}
	return nil
}

func (l *Loader) validatePathLocked(p *models.LearningPath) error {
	if p.ID == "" {
		return fmt.Errorf("path id is required")
	}
	seen := make(map[int]bool, len(p.StoryIDs))
	for _, id := range p.StoryIDs {
		if seen[id] {
			return fmt.Errorf("path %s: story %d listed twice", p.ID, id)
		}
		seen[id] = true
		if _, ok := l.stories[id]; !ok {
			return fmt.Errorf("path %s: %w: %d", p.ID, ErrStoryNotFound, id)
		}
	}
	return nil
}

// rebuildLocked refreshes the sorted story view and category counts
func (l *Loader) rebuildLocked() {
	ordered := make([]models.Story, 0, len(l.stories))
	for _, s := range l.stories {
		ordered = append(ordered, *s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	l.ordered = ordered
	l.recountLocked()
}

func (l *Loader) recountLocked() {
	for _, c := range l.categories {
		c.StoryCount = 0
	}
	for _, s := range l.ordered {
		if c, ok := l.categories[s.Category]; ok {
			c.StoryCount++
		}
	}
}

func clonePath(p *models.LearningPath) models.LearningPath {
	cp := *p
	cp.StoryIDs = append([]int(nil), p.StoryIDs...)
	return cp
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// --- YAML file structs ---

// categoryFile represents the YAML structure of a category.yaml file
type categoryFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Order       int    `yaml:"order"`
}

// storyFile represents the YAML structure of a story file
type storyFile struct {
	ID          int      `yaml:"id"`
	Category    string   `yaml:"category"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Difficulty  string   `yaml:"difficulty"`
	Duration    int      `yaml:"duration"`
	Trimester   string   `yaml:"trimester"`
	Content     string   `yaml:"content"`
	AudioURL    string   `yaml:"audio_url"`
	ImageURL    string   `yaml:"image_url"`
	Tags        []string `yaml:"tags"`
}

// pathFile represents the YAML structure of a learning path file
type pathFile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Stories     []int  `yaml:"stories"`
}

// presetsFile represents the YAML structure of presets.yaml
type presetsFile struct {
	Presets []presetEntry `yaml:"presets"`
}

type presetEntry struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Filters presetFilter `yaml:"filters"`
}

// presetFilter holds only the constrained fields; omitted fields mean "all"
type presetFilter struct {
	Category   string `yaml:"category"`
	Difficulty string `yaml:"difficulty"`
	Search     string `yaml:"search"`
	Duration   string `yaml:"duration"`
	Status     string `yaml:"status"`
	Trimester  string `yaml:"trimester"`
}

func (f presetFilter) toState() models.AdvancedFilterState {
	orAll := func(v string) string {
		if v == "" {
			return models.FilterAll
		}
		return v
	}
	return models.AdvancedFilterState{
		SelectedCategory:         orAll(f.Category),
		SelectedDifficulty:       orAll(f.Difficulty),
		SearchTerm:               f.Search,
		SelectedDuration:         orAll(f.Duration),
		SelectedCompletionStatus: orAll(f.Status),
		SelectedTrimester:        orAll(f.Trimester),
	}
}
