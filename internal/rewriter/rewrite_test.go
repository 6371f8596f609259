package rewriter

import (
	"net"
	"strings"
	"testing"

	"github.com/ZivoMartin/Dake/internal/ids"
)

// stubResolver lets tests exercise DNS-name labels without touching the
// network, keeping the rewriter's purity testable in isolation.
type stubResolver struct {
	answers map[string]net.IP
}

func (r stubResolver) ResolveHost(name string) (net.IP, error) {
	ip, ok := r.answers[name]
	if !ok {
		return nil, errNoSuchHost(name)
	}
	return ip, nil
}

type errNoSuchHost string

func (e errNoSuchHost) Error() string { return "no such host: " + string(e) }

func testPid(t *testing.T) ids.ProcessId {
	t.Helper()
	daemon, err := ids.NewDaemonId()
	if err != nil {
		t.Fatalf("NewDaemonId: %v", err)
	}
	project := ids.NewProjectId(daemon, "/tmp/project")
	return ids.NewProcessId(1, project)
}

func TestTokenizeUnlabeledTargetStaysLocal(t *testing.T) {
	src := "all: build\n\tgo build ./...\n"

	toks, err := Tokenize(nil, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	set, err := Rewrite(toks, testPid(t), "/usr/bin/dake")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if len(set.Remotes) != 0 {
		t.Fatalf("expected no remote makefiles, got %d", len(set.Remotes))
	}
	if !strings.Contains(set.Local, "all:") {
		t.Fatalf("local makefile missing unlabeled target:\n%s", set.Local)
	}
}

func TestRewriteLabeledTargetProducesRemoteAndStub(t *testing.T) {
	src := "build[10.0.0.5]: \n\tgo build ./...\n"

	toks, err := Tokenize(nil, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	set, err := Rewrite(toks, testPid(t), "/usr/bin/dake")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if len(set.Remotes) != 1 {
		t.Fatalf("expected exactly one remote makefile, got %d", len(set.Remotes))
	}
	if !strings.Contains(set.Remotes[0].Text, "go build ./...") {
		t.Fatalf("remote makefile missing the labeled recipe:\n%s", set.Remotes[0].Text)
	}
	if !strings.Contains(set.Local, "dake fetch") {
		t.Fatalf("local makefile missing fetch stub:\n%s", set.Local)
	}
	if strings.Contains(set.Local, "go build ./...") {
		t.Fatalf("local makefile should not carry the labeled recipe directly:\n%s", set.Local)
	}
}

func TestTokenizeResolvesDNSNameLabelThroughResolver(t *testing.T) {
	resolver := stubResolver{answers: map[string]net.IP{
		"builder.internal": net.ParseIP("10.0.0.9"),
	}}
	src := "build[builder.internal]:\n\tgo build ./...\n"

	toks, err := Tokenize(resolver, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	var found bool
	for _, tok := range toks {
		if tok.Kind == TokenTarget && tok.Label != nil {
			found = true
			if !strings.Contains(tok.Label.Host.Addr, "10.0.0.9") {
				t.Fatalf("expected resolved IP in socket addr, got %q", tok.Label.Host.Addr)
			}
		}
	}
	if !found {
		t.Fatalf("expected a labeled target token")
	}
}

func TestTokenizeUnresolvableDNSNameFails(t *testing.T) {
	src := "build[nowhere.example]:\n\tgo build ./...\n"

	if _, err := Tokenize(stubResolver{answers: map[string]net.IP{}}, src); err == nil {
		t.Fatalf("expected an error resolving an unknown host")
	}
}

func TestRewriteIsDeterministicAcrossRuns(t *testing.T) {
	src := "a[10.0.0.1]:\n\techo a\nb[10.0.0.2]:\n\techo b\n"
	pid := testPid(t)

	toks1, err := Tokenize(nil, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	set1, err := Rewrite(toks1, pid, "/usr/bin/dake")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	toks2, err := Tokenize(nil, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	set2, err := Rewrite(toks2, pid, "/usr/bin/dake")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if set1.Local != set2.Local {
		t.Fatalf("local makefile not deterministic:\n%s\n---\n%s", set1.Local, set2.Local)
	}
	if len(set1.Remotes) != len(set2.Remotes) {
		t.Fatalf("remote count not deterministic: %d vs %d", len(set1.Remotes), len(set2.Remotes))
	}
	for i := range set1.Remotes {
		if set1.Remotes[i].Text != set2.Remotes[i].Text || set1.Remotes[i].Host != set2.Remotes[i].Host {
			t.Fatalf("remote makefile %d not deterministic", i)
		}
	}
}

func TestRewriteSubmakefileCarriesStubsForOtherHosts(t *testing.T) {
	src := "a[10.0.0.1]:\n\techo a\nb[10.0.0.2]:\n\techo b\n"

	toks, err := Tokenize(nil, src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	set, err := Rewrite(toks, testPid(t), "/usr/bin/dake")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	if len(set.Remotes) != 2 {
		t.Fatalf("expected 2 remote makefiles, got %d", len(set.Remotes))
	}
	for _, rm := range set.Remotes {
		if strings.Count(rm.Text, "dake fetch") != 1 {
			t.Fatalf("expected exactly one fetch stub for the sibling host in:\n%s", rm.Text)
		}

		// The owning host's own target must keep its real recipe, not a
		// second, overriding stub rule for the same target name -- make
		// resolves duplicate rules to "last wins", so a stub here would
		// make the owner fetch its own artifact from itself instead of
		// building it.
		var ownTarget, ownRecipe string
		if strings.Contains(rm.Text, "echo a") {
			ownTarget, ownRecipe = "a", "echo a"
		} else {
			ownTarget, ownRecipe = "b", "echo b"
		}
		if !strings.Contains(rm.Text, ownRecipe) {
			t.Fatalf("owning host's submakefile missing its own recipe:\n%s", rm.Text)
		}
		if strings.Count(rm.Text, ownTarget+":") != 1 {
			t.Fatalf("expected exactly one rule for %s: (the real one, no stub override) in:\n%s", ownTarget, rm.Text)
		}
	}
}
