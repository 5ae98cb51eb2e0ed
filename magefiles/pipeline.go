//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Test runs the full test suite.
func Test() error {
	cmd := exec.Command("go", "test", "./...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Crawl runs the built CLI's crawl stage for the given institution.
func Crawl(institution string) error {
	mg.Deps(Build)
	return runCLI("crawl", institution)
}

// Ingest runs the built CLI's ingest stage.
func Ingest() error {
	mg.Deps(Build)
	return runCLI("ingest")
}

// Serve starts the built CLI's HTTP API.
func Serve() error {
	mg.Deps(Build)
	return runCLI("serve")
}

// runCLI invokes the binary built by Build.
func runCLI(args ...string) error {
	bin := filepath.Join(binDir, binName)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", binName, args, err)
	}
	return nil
}
