package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMeltFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		meltFormat, meltToStdout, meltOut = "", false, ""
		meltUnknownKey, meltRetain, meltGameVersion = "", false, ""
	}
	reset()
	t.Cleanup(reset)
}

func TestMeltCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"format":       "",
		"to-stdout":    "false",
		"out":          "",
		"unknown-key":  "",
		"retain":       "false",
		"game-version": "",
	} {
		flag := meltCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "melt command should have --%s flag", name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.Equal(t, "c", meltCmd.Flags().Lookup("to-stdout").Shorthand)
	assert.Equal(t, "o", meltCmd.Flags().Lookup("out").Shorthand)
}

func TestMeltedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("saves", "autosave_melted.eu4"), meltedPath(filepath.Join("saves", "autosave.eu4")))
	assert.Equal(t, filepath.Join("saves", "melted.eu4"), meltedPath(filepath.Join("saves", ".eu4")))
	assert.Equal(t, "game_melted.ck3", meltedPath("game.ck3"))
}

func TestMelt_WritesBesideInputs(t *testing.T) {
	dir := setup(t)
	resetMeltFlags(t)

	a := filepath.Join(dir, "a.eu4")
	b := filepath.Join(dir, "b.eu4")
	require.NoError(t, os.WriteFile(a, eu4Save(), 0o644))
	require.NoError(t, os.WriteFile(b, eu4Save(), 0o644))

	_, _, err := execute(t, meltCmd, nil, a, b)
	require.NoError(t, err)

	for _, out := range []string{"a_melted.eu4", "b_melted.eu4"} {
		data, err := os.ReadFile(filepath.Join(dir, out))
		require.NoError(t, err, out)
		assert.True(t, strings.HasPrefix(string(data), "EU4txt\n"), out)
		assert.Contains(t, string(data), `player="ENG"`)
	}
}

func TestMelt_OutFlag(t *testing.T) {
	dir := setup(t)
	resetMeltFlags(t)

	in := filepath.Join(dir, "save.eu4")
	require.NoError(t, os.WriteFile(in, eu4Save(), 0o644))
	meltOut = filepath.Join(dir, "out", "custom.txt")

	_, _, err := execute(t, meltCmd, nil, in)
	require.NoError(t, err)
	assert.FileExists(t, meltOut)

	_, _, err = execute(t, meltCmd, nil, in, in)
	assert.Error(t, err)
}

func TestMelt_ToStdoutKeepsArgumentOrder(t *testing.T) {
	dir := setup(t)
	resetMeltFlags(t)
	meltToStdout = true

	in := filepath.Join(dir, "save.eu4")
	require.NoError(t, os.WriteFile(in, eu4Save(), 0o644))
	plain := filepath.Join(dir, "plain.eu4")
	require.NoError(t, os.WriteFile(plain, []byte("EU4txt\nfirst=marker\n"), 0o644))

	stdout, _, err := execute(t, meltCmd, nil, plain, in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "EU4txt\nfirst=marker\n"))
	assert.Contains(t, stdout, `player="ENG"`)
	assert.NoFileExists(t, filepath.Join(dir, "save_melted.eu4"))
}

func TestMelt_Stdin(t *testing.T) {
	setup(t)
	resetMeltFlags(t)

	_, _, err := execute(t, meltCmd, eu4Save())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--format")

	meltFormat = "eu4"
	stdout, _, err := execute(t, meltCmd, eu4Save())
	require.NoError(t, err)
	assert.Contains(t, stdout, "date=1444.11.11")
}

func TestMelt_UnknownTokens(t *testing.T) {
	dir := setup(t)
	resetMeltFlags(t)

	in := filepath.Join(dir, "save.eu4")
	require.NoError(t, os.WriteFile(in, eu4Save(0x7777), 0o644))

	_, _, err := execute(t, meltCmd, nil, in)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "save_melted.eu4"))

	meltUnknownKey = "stringify"
	_, stderr, err := execute(t, meltCmd, nil, in)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Equal(t, "7777\n", stderr)
	assert.FileExists(t, filepath.Join(dir, "save_melted.eu4"))
}

func TestMelt_StdinUnknownTokenWritesNothing(t *testing.T) {
	setup(t)
	resetMeltFlags(t)
	meltFormat = "eu4"

	stdout, _, err := execute(t, meltCmd, eu4Save(0x7777))
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, stdout)
}

func TestMelt_BadOptions(t *testing.T) {
	dir := setup(t)
	resetMeltFlags(t)
	in := filepath.Join(dir, "save.eu4")
	require.NoError(t, os.WriteFile(in, eu4Save(), 0o644))

	meltUnknownKey = "ignore"
	_, _, err := execute(t, meltCmd, nil, in)
	assert.Error(t, err)

	meltUnknownKey = ""
	meltGameVersion = "one.two"
	_, _, err = execute(t, meltCmd, nil, in)
	assert.Error(t, err)

	meltGameVersion = ""
	unknownExt := filepath.Join(dir, "save.sav")
	require.NoError(t, os.WriteFile(unknownExt, eu4Save(), 0o644))
	_, _, err = execute(t, meltCmd, nil, unknownExt)
	assert.Error(t, err)
}
