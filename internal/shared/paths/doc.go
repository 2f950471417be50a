// Package paths locates the files Moonlit keeps on disk.
package paths
