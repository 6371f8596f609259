package main

import (
	"os"

	"github.com/ZivoMartin/Dake/internal/config"
	"github.com/ZivoMartin/Dake/internal/dakelog"
)

// runClean implements `dake clean` (spec.md §6): recursively delete the
// Dake workspace directory (SPEC_FULL.md "dake clean").
func runClean() int {
	env, err := config.LoadEnv()
	if err != nil {
		dakelog.Error("load environment: %v", err)
		return 1
	}

	if err := os.RemoveAll(env.SpacePath); err != nil {
		dakelog.Error("clean %s: %v", env.SpacePath, err)
		return 1
	}
	return 0
}
