package cryptobox

// Zero overwrites a byte slice in memory with zeros. Best-effort: the Go
// compiler is free to eliminate dead stores, but this is the same
// best-effort hygiene used throughout this codebase for short-lived key
// material (data keys, access keys, derived KEKs).
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
