package util

import "os"

// Modes holds the permission bits for directories and files of a repository.
type Modes struct {
	Dir  os.FileMode
	File os.FileMode
}

var DefaultModes = Modes{Dir: 0700, File: 0600}

// DeriveModesFromFileInfo widens the default modes to group access when the
// repository's config file is group readable.
func DeriveModesFromFileInfo(fi os.FileInfo, err error) Modes {
	m := DefaultModes
	if err != nil {
		return m
	}

	if fi.Mode()&0040 != 0 { // Group has read access
		m.Dir |= 0070
		m.File |= 0060
	}

	return m
}
