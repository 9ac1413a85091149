package common

// WipeByteArray overwrites b with zeros. Used to drop plaintext passwords
// from memory once they have been sent or hashed. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
