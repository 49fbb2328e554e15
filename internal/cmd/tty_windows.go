//go:build windows

package cmd

import "errors"

// The widget draws on /dev/tty, which Windows does not have.
func checkTerminal() error {
	return errors.New("interactive mode needs a unix terminal; use \"smartsearch search\"")
}

func acquireLock(string) (int, error) {
	return -1, nil
}

func releaseLock(int) {}
