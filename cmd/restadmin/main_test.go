package main

import (
	"testing"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildApp(t *testing.T) {
	app := buildApp()

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"serve", "routes", "docs"}, names)
}

func TestLoggingSetup(t *testing.T) {
	require.NoError(t, loggingSetup("restadmin-test", "debug"))
	assert.Equal(t, "restadmin-test", grip.Name())
	assert.Equal(t, level.Debug, grip.GetSender().Level().Threshold)
}
