// Package store persists trained pattern models as a single file: a fixed
// header followed by a zstd-compressed body of gamma tables. Files are
// replaced atomically through a temporary file and rename.
package store
