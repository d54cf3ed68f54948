package main

import "testing"

func TestMainRunsCLI(t *testing.T) {
	orig := execute
	t.Cleanup(func() { execute = orig })

	var called bool
	execute = func() { called = true }

	main()

	if !called {
		t.Fatal("main did not invoke the CLI entrypoint")
	}
}
