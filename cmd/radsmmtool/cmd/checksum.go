package cmd

import (
	"fmt"

	"github.com/mathmed/kelvin/radsmm"
)

// checksum opens path read-only, computes its seahash/highwayhash
// digest pair over the data region, and prints it hex-encoded.
func checksum(path string) error {
	st, err := radsmm.OpenFile(path, true)
	if err != nil {
		return err
	}
	defer st.Close() // nolint: errcheck

	sum, err := st.Checksum()
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", sum)
	return nil
}
