package main

import (
	"flag"
	"os"

	"github.com/ZivoMartin/Dake/internal/dakelog"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
	"github.com/ZivoMartin/Dake/pkg/dakeclient"
)

// runFetch implements `dake fetch` (spec.md §6), invoked by a generated
// fetch stub to retrieve a target built on another host into the current
// directory.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	pidStr := fs.String("pid", "", "encoded process id")
	target := fs.String("target", "", "target to fetch")
	host := fs.String("host", "", "owning host socket, host:port")
	labeledPath := fs.String("labeled-path", "", "directory on the owning host to build in")
	fs.Parse(args)

	if *pidStr == "" || *target == "" || *host == "" {
		dakelog.Error("fetch: --pid, --target and --host are required")
		return 1
	}

	pid, err := ids.DecodeProcessId(*pidStr)
	if err != nil {
		dakelog.Error("fetch: %v", err)
		return 1
	}

	sock := transport.TCP(*host)

	out, err := os.Create(*target)
	if err != nil {
		dakelog.Error("fetch: create %s: %v", *target, err)
		return 1
	}
	defer out.Close()

	err = dakeclient.Fetch(pid, sock, *target, *labeledPath, *labeledPath != "", func(chunk []byte) {
		if _, werr := out.Write(chunk); werr != nil {
			dakelog.Error("fetch: write %s: %v", *target, werr)
		}
	})
	if err != nil {
		dakelog.Error("fetch: %v", err)
		return 1
	}
	return 0
}
