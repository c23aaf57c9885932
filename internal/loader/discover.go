package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// Filter — отбор сценариев по имени и тегам.
type Filter struct {
	// Name — подстрока имени без учёта регистра.
	Name string

	// Tags — сценарий должен иметь хотя бы один из тегов.
	Tags []string
}

// IsZero возвращает true для пустого фильтра.
func (f Filter) IsZero() bool {
	return f.Name == "" && len(f.Tags) == 0
}

// Match проверяет сценарий по фильтру.
func (f Filter) Match(sc *domain.Scenario) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(sc.Name), strings.ToLower(f.Name)) {
		return false
	}
	if len(f.Tags) == 0 {
		return true
	}
	for _, tag := range f.Tags {
		if sc.HasTag(tag) {
			return true
		}
	}
	return false
}

// Discover возвращает файлы сценариев по пути в лексическом порядке.
//
// Файл возвращается как есть (если формат поддерживается), директория
// обходится рекурсивно. Скрытые директории пропускаются.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		if _, err := DetectFormat(root); err != nil {
			return nil, err
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsScenarioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// DiscoverAll объединяет результаты Discover для нескольких путей без дубликатов.
func DiscoverAll(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range roots {
		found, err := Discover(root)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			clean := filepath.Clean(f)
			if seen[clean] {
				continue
			}
			seen[clean] = true
			files = append(files, f)
		}
	}
	return files, nil
}
