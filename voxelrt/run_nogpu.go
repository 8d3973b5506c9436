//go:build nogpu

package main

import (
	"errors"

	"github.com/urfave/cli"
)

func runInteractive(*cli.Context) error {
	return errors.New("built without GPU support; use render instead")
}
