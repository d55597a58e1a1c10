package hattrie

// TrieBucketSize is the default burst threshold: a Get that reaches a
// bucket already holding this many keys splits it before inserting, so a
// bucket may hold exactly this many keys between calls. Tunable via
// WithBucketSize.
const TrieBucketSize = 16384

// TrieMaxChar bounds the byte alphabet keys may use; 255 admits the full
// byte range, 127 restricts callers to 7-bit ASCII. It only gates input
// validation (checkKey); child arrays are always sized 256. Tunable via
// WithMaxChar.
const TrieMaxChar = 255
