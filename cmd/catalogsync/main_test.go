package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/catalogsync/migrate"
)

func TestNewApp_Commands(t *testing.T) {
	app := newApp()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
		assert.NotNil(t, cmd.Action, cmd.Name)
	}
	assert.Equal(t, []string{
		"migrate-products", "migrate-inventory", "link-inventory", "batch-embed",
		"reembed", "match", "build-indexes", "search", "probe-threshold",
	}, names)
}

func TestReembedCommandFlags(t *testing.T) {
	cmd := newApp().Command("reembed")
	require.NotNil(t, cmd)

	defaults := map[string]any{}
	for _, flag := range cmd.Flags {
		switch f := flag.(type) {
		case *cli.IntFlag:
			defaults[f.Name] = f.Value
		}
	}
	assert.Equal(t, 100, defaults["batch-size"])
	assert.Equal(t, 100, defaults["report-interval"])
	assert.Equal(t, 3, defaults["max-retries"])
}

func TestReembedCommand_RejectsBadFlags(t *testing.T) {
	tests := []struct {
		args    []string
		wantMsg string
	}{
		{[]string{"--batch-size", "0"}, "batch-size"},
		{[]string{"--report-interval", "0"}, "report-interval"},
		{[]string{"--max-retries", "0"}, "max-retries"},
	}
	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			args := append([]string{"catalogsync", "reembed"}, tt.args...)
			err := newApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	err := newApp().Run([]string{"catalogsync", "search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestSearchCommand_RejectsUnknownPlatform(t *testing.T) {
	err := newApp().Run([]string{"catalogsync", "search", "--platform", "goat", "dunk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goat")
}

func TestMigrateProducts_RejectsUnknownPhase(t *testing.T) {
	err := newApp().Run([]string{"catalogsync", "migrate-products", "--phase", "later"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase")
}

func TestParsePhase(t *testing.T) {
	for _, p := range migrate.Phases {
		got, err := parsePhase(strings.ToUpper(p.String()))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := parsePhase("")
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	t.Run("yes skips the prompt", func(t *testing.T) {
		var out bytes.Buffer
		ok, err := confirm(true, false, strings.NewReader(""), &out, "Drop")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, out.String())
	})

	t.Run("non-interactive without yes fails", func(t *testing.T) {
		_, err := confirm(false, false, strings.NewReader("y\n"), &bytes.Buffer{}, "Drop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")
	})

	t.Run("interactive answers", func(t *testing.T) {
		tests := []struct {
			answer string
			want   bool
		}{
			{"y\n", true},
			{"YES\n", true},
			{"n\n", false},
			{"\n", false},
			{"", false},
		}
		for _, tt := range tests {
			var out bytes.Buffer
			ok, err := confirm(false, true, strings.NewReader(tt.answer), &out, "Drop")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok, "answer %q", tt.answer)
			assert.Equal(t, "Drop [y/N]: ", out.String())
		}
	})
}

func TestDestructiveCommandsNeedConfirmation(t *testing.T) {
	// Test stdin is not a terminal, so these fail before any connection is made.
	for _, args := range [][]string{
		{"catalogsync", "match", "--rematch"},
		{"catalogsync", "build-indexes", "--rebuild"},
		{"catalogsync", "batch-embed", "--regenerate"},
	} {
		err := newApp().Run(args)
		require.Error(t, err, strings.Join(args, " "))
		assert.Contains(t, err.Error(), "--yes")
	}
}

func TestSetupLogger(t *testing.T) {
	run := func(args ...string) error {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		return app.Run(append([]string{"test"}, args...))
	}

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, run("--log-level", level))
		})
	}

	t.Run("alias", func(t *testing.T) {
		require.NoError(t, run("-l", "debug"))
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := run("--log-level", "invalid")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
