// Package container holds a whole HDF5 file in memory as a tree of groups,
// datasets, attributes and soft links that can be restructured freely
// (move, unlink, create) and written back in one piece.
//
// Paths passed to Group methods are relative to that group and may contain
// several components ("col__tmp/pages"). Member order is the order in which
// members were loaded or created.
package container
