package main

import (
	"context"
	"testing"

	"github.com/jpcastberg/saym/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestCommandRejectsInvalidConfig(t *testing.T) {
	cmd := newCmd(&config.Config{})
	cmd.SetArgs([]string{"--tls-cert", "cert.pem"})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "tls-key")
}

func TestCommandRejectsArguments(t *testing.T) {
	cmd := newCmd(&config.Config{})
	cmd.SetArgs([]string{"serve"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
