package ttyd

import "testing"

func TestServiceRegistryResolve(t *testing.T) {
	r := NewServiceRegistry([]Service{
		{Path: "/shell", Argv: []string{"/bin/bash"}},
		{Path: "/logs", Argv: []string{"tail", "-f", "{file}"}},
	})

	svc, ok := r.Resolve("/shell")
	if !ok {
		t.Fatal("Resolve(/shell) = false, want true")
	}
	if svc.Path != "/shell" {
		t.Errorf("Path = %q, want /shell", svc.Path)
	}

	if _, ok := r.Resolve("/missing"); ok {
		t.Error("Resolve(/missing) = true, want false")
	}
}

func TestServiceRegistryResolvePreservesOrder(t *testing.T) {
	r := NewServiceRegistry([]Service{
		{Path: "/a", Argv: []string{"one"}},
		{Path: "/a", Argv: []string{"two"}},
	})

	svc, ok := r.Resolve("/a")
	if !ok {
		t.Fatal("Resolve(/a) = false")
	}
	if svc.Argv[0] != "one" {
		t.Errorf("Argv[0] = %q, want first-registered %q", svc.Argv[0], "one")
	}
}

func TestServiceRegistryMatchesDirectory(t *testing.T) {
	r := NewServiceRegistry([]Service{
		{Path: "/shell", Argv: []string{"/bin/bash"}},
	})

	if !r.MatchesDirectory("/auth_token.js") {
		t.Error("MatchesDirectory(/auth_token.js) = false, want true")
	}
	if r.MatchesDirectory("/other/auth_token.js") {
		t.Error("MatchesDirectory(/other/auth_token.js) = true, want false")
	}
}

func TestSubstitute(t *testing.T) {
	argv := []string{"tail", "-f", "{file}", "{missing}"}
	fragments := []Fragment{{Key: "file", Value: "/var/log/syslog"}}

	got := Substitute(argv, fragments)
	want := []string{"tail", "-f", "/var/log/syslog", "{missing}"}

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSubstituteNeverTouchesArgv0(t *testing.T) {
	argv := []string{"{not a command}"}
	got := Substitute(argv, []Fragment{{Key: "not a command", Value: "replaced"}})
	if got[0] != "{not a command}" {
		t.Errorf("argv[0] = %q, want unchanged %q", got[0], "{not a command}")
	}
}

func TestSubstituteDoesNotRescanReplacement(t *testing.T) {
	argv := []string{"cmd", "{a}"}
	fragments := []Fragment{
		{Key: "a", Value: "{b}"},
		{Key: "b", Value: "shouldnotappear"},
	}
	got := Substitute(argv, fragments)
	if got[1] != "{b}" {
		t.Errorf("got[1] = %q, want %q (no second pass)", got[1], "{b}")
	}
}

func TestParseFragments(t *testing.T) {
	got := ParseFragments("a=1&b=2&flag")
	want := []Fragment{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "flag", Value: ""},
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseFragmentsEmpty(t *testing.T) {
	if got := ParseFragments(""); got != nil {
		t.Errorf("ParseFragments(\"\") = %+v, want nil", got)
	}
}
