// Package superblock implements the container file header.
//
// # Layout
//
//	offset  size  field
//	     0     8  signature 0x89 'B' 'X' 'F' '\r' '\n' 0x1a '\n'
//	     8     1  version (1)
//	     9     1  offset size (always 8)
//	    10     1  length size (always 8)
//	    11     1  flags
//	    12    16  file UUID
//	    28     8  logical end of file
//	    36     8  catalog address (all one-bits before the first flush)
//	    44     8  catalog length
//	    52     4  lookup3 checksum of bytes 0-51
//
// All integers are little-endian. The signature borrows the binary-file
// guard bytes of PNG: the high-bit first byte and the CR LF / ^Z / LF tail
// detect 7-bit and newline-translating transfers.
//
// The superblock is rewritten in place after every catalog write, so a
// reader always sees either the previous or the next complete catalog.
package superblock
