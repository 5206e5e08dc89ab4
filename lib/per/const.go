package per

const (
	// MAX_CONSTRAINED_LENGTH is the largest size upper bound that is still
	// encoded as a constrained whole number. Size ranges reaching beyond it
	// are treated as unbounded and use a length determinant.
	// ITU-T X.691 Section 11.9.3.3 / 11.9.4.1
	MAX_CONSTRAINED_LENGTH = 65536 // 64K

	// FRAGMENT_SIZE is the first length that needs the fragmented form of the
	// length determinant. Fragmentation is not implemented, so lengths from
	// FRAGMENT_SIZE upwards are rejected with a NotSupportedError.
	// ITU-T X.691 Section 11.9.4.2
	FRAGMENT_SIZE = 16384 // 16K = 16 * 1024

	// MAX_NORMALLY_SMALL is the largest value that fits the short form of a
	// normally small non-negative whole number.
	// ITU-T X.691 Section 11.6
	MAX_NORMALLY_SMALL = 63

	// MAX_NORMALLY_SMALL_LENGTH is the largest supported normally small length.
	// ITU-T X.691 Section 11.9.3.4
	MAX_NORMALLY_SMALL_LENGTH = 64
)
