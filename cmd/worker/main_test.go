package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thermaquote/thermaquote/internal/app"
	_ "github.com/thermaquote/thermaquote/testing"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
