package cmd

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "ask", "ingest", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestAskRequiresArgs(t *testing.T) {
	if err := askCmd.Args(askCmd, nil); err == nil {
		t.Error("ask accepts zero arguments, want an error")
	}
	if err := askCmd.Args(askCmd, []string{"what is this?"}); err != nil {
		t.Errorf("ask rejects one argument: %v", err)
	}
}

func TestIngestRequiresArgs(t *testing.T) {
	if err := ingestCmd.Args(ingestCmd, nil); err == nil {
		t.Error("ingest accepts zero arguments, want an error")
	}
}
