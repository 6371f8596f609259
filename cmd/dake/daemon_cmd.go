package main

import (
	"os"

	"github.com/ZivoMartin/Dake/internal/config"
	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/daemon"
	"github.com/ZivoMartin/Dake/internal/orchestrator"
)

// runDaemon implements `dake daemon` (spec.md §6): start the long-lived
// daemon, refusing to start a second instance unless -force is given
// (SPEC_FULL.md "Already-running daemon detection"). It exits only on a
// fatal startup error.
func runDaemon() int {
	env, err := config.LoadEnv()
	if err != nil {
		dakelog.Error("load environment: %v", err)
		return 1
	}

	cfg, err := config.LoadOrCreateDaemonConfig(env.SpacePath)
	if err != nil {
		dakelog.Error("load daemon config: %v", err)
		return 1
	}

	if config.AlreadyRunning(cfg) && !*f_force {
		dakelog.Error("dake daemon appears to already be running (pid %d), override with -force", cfg.OSPid)
		return 1
	}

	cfg.OSPid = uint32(os.Getpid())
	if err := config.WriteDaemonConfig(env.SpacePath, cfg); err != nil {
		dakelog.Error("persist daemon config: %v", err)
		return 1
	}

	state := daemon.NewState(cfg)
	orch := orchestrator.New(state, env)
	dispatcher := daemon.NewDispatcher(state, orch.Handlers())

	dakelog.Info("dake daemon %s listening on %s and %s", cfg.Id, config.UnixSocketPath(), env.BindAddr())

	if err := dispatcher.Serve(config.UnixSocketPath(), env.BindAddr()); err != nil {
		dakelog.Error("serve: %v", err)
		return 1
	}
	return 0
}
