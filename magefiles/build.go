//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the boardcfg project using Mage.
//
// Usage:
//
//	mage build       Compile boardcfg binary to bin/
//	mage test:all    Run all tests
//	mage test:unit   Run tests without the race detector or cache
//	mage test:cover  Write a coverage profile to bin/
//	mage boards      Check every board under boards/
//	mage lint        Run golangci-lint
//	mage clean       Remove build artifacts
//	mage install     Install boardcfg to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "boardcfg"
	binaryDir  = "bin"
	cmdDir     = "./cmd/boardcfg"
	outputDir  = "build"
)

// Build compiles the boardcfg binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", binaryPath(), cmdDir)
}

// Boards builds boardcfg and checks every board in the project.
func Boards() error {
	mg.Deps(Build)
	return sh.RunV(binaryPath(), "check", "--all")
}

// Clean removes build artifacts and emitted board configurations.
func Clean() error {
	for _, dir := range []string{binaryDir, outputDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, binaryPath())
}

func binaryPath() string {
	return filepath.Join(binaryDir, binaryName)
}
