package rewriter

import (
	"fmt"
	"strings"

	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// RemoteMakefileSet is the output of Rewrite: one primary makefile that
// stays local, and one submakefile per remote host referenced by a labeled
// target (spec.md §3, §4.2).
type RemoteMakefileSet struct {
	Local   string
	Remotes []transport.RemoteMakefile
}

// hostEntry accumulates the targets bound to one remote host, in the order
// they were first seen.
type hostEntry struct {
	host   transport.Socket
	path   string
	hasDef bool
	body   strings.Builder
}

// Rewrite partitions a tokenized Makefile into a local primary makefile and
// one submakefile per distinct labeled host. Every labeled target is
// replaced, in the local makefile, by a fetch stub that shells out to dake
// fetch against the owning host; each submakefile additionally carries
// stubs for every OTHER labeled host's targets, so a remote recipe that
// depends on a target owned by a third host can still reach it. Unlabeled
// targets get no stub anywhere: their real rules are copied verbatim into
// the local makefile and into every submakefile.
//
// Rewrite touches neither the filesystem nor the network: it is a pure
// function of tokens, local and dakePath (spec.md §9 "Rewriter purity").
// Any network access required to resolve a label happened earlier, during
// Tokenize.
func Rewrite(tokens []Token, local ids.ProcessId, dakePath string) (RemoteMakefileSet, error) {
	type stubTarget struct {
		target string
		host   transport.Socket
	}

	var shared strings.Builder
	order := make([]transport.Socket, 0)
	entries := make(map[transport.Socket]*hostEntry)
	var stubTargets []stubTarget

	ensureEntry := func(sock transport.Socket) *hostEntry {
		e := entries[sock]
		if e == nil {
			e = &hostEntry{host: sock}
			entries[sock] = e
			order = append(order, sock)
		}
		return e
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenRaw:
			shared.WriteString(tok.Text)

		case TokenRootDef:
			sock := transport.TCP(fmt.Sprintf("%s:%d", tok.RootHost, DefaultPort))
			e := ensureEntry(sock)
			e.path = tok.RootPath
			e.hasDef = true

		case TokenTarget:
			if tok.Label == nil {
				shared.WriteString(tok.Target + ":" + tok.Command + "\n")
				continue
			}

			sock := tok.Label.Host
			e := ensureEntry(sock)
			if tok.Label.HasPath && !e.hasDef {
				e.path = tok.Label.Path
				e.hasDef = true
			}
			e.body.WriteString(tok.Target + ":" + tok.Command + "\n")
			stubTargets = append(stubTargets, stubTarget{target: tok.Target, host: sock})

		default:
			return RemoteMakefileSet{}, fmt.Errorf("rewrite: unknown token kind %d", tok.Kind)
		}
	}

	// Stubs are rendered after the full pass so a #!ROOT_DEF appearing
	// anywhere in the file (even after the target it describes) still
	// annotates the generated stub with --labeled-path (SPEC_FULL.md
	// "--labeled-path passthrough").
	renderStub := func(st stubTarget) string {
		e := entries[st.host]
		var b strings.Builder
		fmt.Fprintf(&b, "%s:\n\t%s fetch --pid %s --target %s --host %s",
			st.target, dakePath, local.Encode(), st.target, st.host.Addr)
		if e.hasDef {
			fmt.Fprintf(&b, " --labeled-path %s", e.path)
		}
		b.WriteString("\n")
		return b.String()
	}

	var allStubs strings.Builder
	for _, st := range stubTargets {
		allStubs.WriteString(renderStub(st))
	}

	set := RemoteMakefileSet{
		Local: shared.String() + allStubs.String(),
	}

	for _, sock := range order {
		e := entries[sock]
		var text strings.Builder
		text.WriteString(shared.String())
		text.WriteString(e.body.String())

		// A host's own targets keep their real rule from e.body above; a
		// stub for the same target name would be a second, overriding
		// recipe that make resolves to "last wins", so the owner would
		// fetch its own artifact from itself instead of building it
		// (spec.md §4.2, §8 scenarios 2-3). Only other hosts' targets get
		// a stub here.
		for _, st := range stubTargets {
			if st.host == sock {
				continue
			}
			text.WriteString(renderStub(st))
		}

		set.Remotes = append(set.Remotes, transport.RemoteMakefile{
			Text: text.String(),
			Host: sock,
		})
	}

	return set, nil
}
