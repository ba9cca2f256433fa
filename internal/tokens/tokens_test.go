package tokens

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakaly/cli/internal/game"
)

func TestParseText(t *testing.T) {
	d, err := ParseText(strings.NewReader("# comment\n\n0x2d82 field1\n284 date\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	name, ok := d.Resolve(0x2d82)
	require.True(t, ok)
	assert.Equal(t, "field1", name)

	name, ok = d.Resolve(284)
	require.True(t, ok)
	assert.Equal(t, "date", name)

	_, ok = d.Resolve(1)
	assert.False(t, ok)
}

func TestParseText_Malformed(t *testing.T) {
	_, err := ParseText(strings.NewReader("0x10 a\nnope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseText(strings.NewReader("0xZZ a\n"))
	assert.Error(t, err)

	_, err = ParseText(strings.NewReader("70000 too_big\n"))
	assert.Error(t, err)
}

func TestRegistry_OverlappingRanges(t *testing.T) {
	reg := NewRegistry()
	reg.Add(game.EU4, game.VersionRange{Max: game.Version{Major: 1, Minor: 30}},
		NewDictionary(map[uint16]string{1000: "old_name", 1001: "shared"}))
	reg.Add(game.EU4, game.VersionRange{Min: game.Version{Major: 1, Minor: 25}},
		NewDictionary(map[uint16]string{1000: "new_name"}))

	name, ok := reg.Resolve(game.EU4, game.Version{Major: 1, Minor: 20}, 1000)
	require.True(t, ok)
	assert.Equal(t, "old_name", name)

	name, ok = reg.Resolve(game.EU4, game.Version{Major: 1, Minor: 28}, 1000)
	require.True(t, ok)
	assert.Equal(t, "new_name", name)

	name, ok = reg.Resolve(game.EU4, game.Version{Major: 1, Minor: 28}, 1001)
	require.True(t, ok)
	assert.Equal(t, "shared", name)

	_, ok = reg.Resolve(game.EU4, game.Version{Major: 1, Minor: 35}, 1001)
	assert.False(t, ok)

	name, ok = reg.Resolve(game.EU4, game.Version{}, 1000)
	require.True(t, ok)
	assert.Equal(t, "new_name", name)

	_, ok = reg.Resolve(game.CK3, game.Version{}, 1000)
	assert.False(t, ok)
}

func TestRegistry_ScopedConcurrentReads(t *testing.T) {
	reg := NewRegistry()
	reg.Add(game.CK3, game.VersionRange{}, NewDictionary(map[uint16]string{7: "seven"}))
	r := reg.For(game.CK3, game.Version{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name, ok := r.Resolve(7)
				assert.True(t, ok)
				assert.Equal(t, "seven", name)
			}
		}()
	}
	wg.Wait()
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eu4.txt"), []byte("0x284b date\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ck3.yaml"), []byte(`
- min_version: "1.0"
  max_version: "1.4"
  tokens:
    "0x0100": legacy
- min_version: "1.5"
  tokens:
    "0x0100": modern
    "300": other
`), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)

	name, ok := reg.Resolve(game.EU4, game.Version{Major: 1, Minor: 37}, 0x284b)
	require.True(t, ok)
	assert.Equal(t, "date", name)

	name, ok = reg.Resolve(game.CK3, game.Version{Major: 1, Minor: 2}, 0x100)
	require.True(t, ok)
	assert.Equal(t, "legacy", name)

	name, ok = reg.Resolve(game.CK3, game.Version{}, 0x100)
	require.True(t, ok)
	assert.Equal(t, "modern", name)

	assert.Equal(t, 0, reg.Size(game.HOI4))
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	reg, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	_, ok := reg.Resolve(game.EU4, game.Version{}, 1)
	assert.False(t, ok)

	reg, err = LoadDir("")
	require.NoError(t, err)
	assert.NotNil(t, reg)
}

func TestLoadDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hoi4.txt"), []byte("bad line here\n"), 0o644))
	_, err := LoadDir(dir)
	assert.Error(t, err)
}
