// Command lodestone indexes a directory of notes into an embedded SQLite
// database and answers hybrid fulltext/vector/metadata queries over it,
// either one-shot from the command line or as a long-running HTTP service.
package main

import "os"

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
