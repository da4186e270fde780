package main

import (
	"io"
	"os"
	"os/exec"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Getenv   func(string) string
	Environ  func() []string
	LookPath func(string) (string, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Getenv:   os.Getenv,
		Environ:  os.Environ,
		LookPath: exec.LookPath,
	}
}
