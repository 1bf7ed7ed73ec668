package wasmalloc

import "io"

// SwapExit replaces the process exit function and returns a restore func.
func SwapExit(fn func(int)) func() {
	prev := exit
	exit = fn
	return func() { exit = prev }
}

// SwapStderr replaces the default failure report writer.
func SwapStderr(w io.Writer) func() {
	prev := stderr
	stderr = w
	return func() { stderr = prev }
}
