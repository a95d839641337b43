package tool

import "os"

// IsFileExists reports whether filename exists. Errors other than "not exist"
// are returned as is.
func IsFileExists(filename string) (bool, error) {
	_, err := os.Stat(filename)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
