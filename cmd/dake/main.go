// Command dake is the distributed build CLI: by default it forwards its
// arguments to a local `make` run across the hosts labeled in the Makefile;
// subcommands start the daemon, service a fetch stub, or clean the
// workspace (spec.md §6 "CLI").
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ZivoMartin/Dake/internal/dakelog"
)

var f_force = flag.Bool("force", false, "start the daemon even if one appears to already be running")

func usage() {
	fmt.Fprintf(os.Stderr, `usage: dake [args...]
       dake daemon
       dake fetch --pid <id> --target <target> --host <host> [--labeled-path <p>]
       dake clean
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if err := dakelog.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "daemon":
			os.Exit(runDaemon())
		case "fetch":
			os.Exit(runFetch(args[1:]))
		case "clean":
			os.Exit(runClean())
		}
	}

	os.Exit(runCaller(args))
}
