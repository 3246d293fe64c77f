package xlog_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/filecache/pkg/xlog"
)

func newTestConfig(stdout *bytes.Buffer) xlog.Config {
	c := xlog.NewConfig()
	c.AttrReplacer = xlog.ChainReplacer(
		xlog.NormalizeSourceAttrReplacer(),
		xlog.SuppressTimeAttrReplacer(),
	)
	c.StdWriter = stdout
	return c
}

func TestLogger_SetLevel(t *testing.T) {
	stdout := &bytes.Buffer{}
	xlog.SetDefault(xlog.New(newTestConfig(stdout)))

	xlog.Debug("suppressed below level")
	assert.Empty(t, stdout.String())

	xlog.SetLevel(xlog.LevelDebug)
	xlog.Debug("log message with attrs", "attr1", "val1", "attr2", "val2")
	xlog.Debugf("log message with format: %s", "hello")

	got := stdout.String()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `msg="log message with attrs" attr1=val1 attr2=val2`)
	assert.Contains(t, lines[0], "source=logger_test.go:")
	assert.Contains(t, lines[1], `msg="log message with format: hello"`)
}

func TestLogger_FileHandler(t *testing.T) {
	stdout := &bytes.Buffer{}
	tempdir := t.TempDir()

	c := newTestConfig(stdout)
	c.Path = filepath.Join(tempdir, "x.log")

	xlog.SetDefault(xlog.New(c))

	xlog.Info("log message with attrs", "attr1", "val1", "attr2", "val2")
	xlog.Infof("log message with format: %s", "hello")

	t.Run("stdout", func(t *testing.T) {
		got := stdout.String()
		assert.Contains(t, got, `msg="log message with attrs" attr1=val1 attr2=val2`)
		assert.Contains(t, got, `msg="log message with format: hello"`)
	})

	t.Run("logfile", func(t *testing.T) {
		content, err := os.ReadFile(c.Path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"log message with attrs"`)
		assert.Contains(t, string(content), `"attr1":"val1"`)
	})
}

func TestLogger_With(t *testing.T) {
	stdout := &bytes.Buffer{}
	logger := xlog.New(newTestConfig(stdout)).With("component", "cache")

	logger.Info("hello")
	assert.Contains(t, stdout.String(), "component=cache")
}
