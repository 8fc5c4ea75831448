// Command radsmmtool inspects and creates RADSMM result stores (C8).
package main

import "github.com/mathmed/kelvin/cmd/radsmmtool/cmd"

func main() {
	cmd.Run()
}
