package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
)

// Snapshot is one archived copy of the watched save.
type Snapshot struct {
	Path string
	Date document.Date
}

// SnapshotName returns <stem>_<Y>-<MM>-<DD><ext>.
func SnapshotName(stem, ext string, d document.Date) string {
	return stem + "_" + d.ISO() + ext
}

// ParseSnapshotName extracts the date from a snapshot file name.
func ParseSnapshotName(name, stem, ext string) (document.Date, bool) {
	prefix := stem + "_"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) || len(name) <= len(prefix)+len(ext) {
		return document.Date{}, false
	}
	mid := name[len(prefix) : len(name)-len(ext)]

	neg := strings.HasPrefix(mid, "-")
	parts := strings.Split(strings.TrimPrefix(mid, "-"), "-")
	if len(parts) != 3 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return document.Date{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return document.Date{}, false
		}
		nums[i] = n
	}
	if neg {
		nums[0] = -nums[0]
	}
	d, err := document.NewDate(nums[0], nums[1], nums[2])
	if err != nil {
		return document.Date{}, false
	}
	return d, true
}

// List returns the snapshots of stem in outDir, oldest first. A missing
// directory holds no snapshots.
func List(outDir, stem, ext string) ([]Snapshot, error) {
	entries, err := os.ReadDir(outDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "watch: read %s", outDir)
	}
	var out []Snapshot
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if d, ok := ParseSnapshotName(e.Name(), stem, ext); ok {
			out = append(out, Snapshot{Path: filepath.Join(outDir, e.Name()), Date: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Scan returns the date of the latest snapshot in outDir, or nil when there
// is none.
func Scan(outDir, stem, ext string) (*document.Date, error) {
	snaps, err := List(outDir, stem, ext)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	d := snaps[len(snaps)-1].Date
	return &d, nil
}

// SplitName returns the stem and extension of a watched file. Dotfiles
// such as ".eu4" keep their name as the extension and get an empty stem.
func SplitName(path string) (stem, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	if ext == base {
		return "", ext
	}
	return strings.TrimSuffix(base, ext), ext
}
