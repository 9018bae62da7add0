package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Seams for term.ReadPassword and term.IsTerminal so tests never touch a TTY.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

type fdReader interface {
	io.Reader
	Fd() uintptr
}

// StdinIsTerminal reports whether the process reads from an interactive terminal.
func StdinIsTerminal() bool {
	return isTerminal(int(os.Stdin.Fd()))
}

// GetSecret prints prompt to w and reads a secret from the terminal without
// echo. A newline is printed after the read to keep the output tidy.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// WipeByteArray overwrites b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
