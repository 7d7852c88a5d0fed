package common

// WipeByteArray overwrites b with zeros so secrets do not linger in memory.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
