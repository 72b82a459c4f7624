// Command fakturaextrakt is a thin reference caller around the
// fakturaextrakt core: it handles file I/O, config loading, progress
// logging and output rendering, and leaves all extraction semantics to
// the library.
package main

import "os"

func main() {
	os.Exit(Execute())
}
