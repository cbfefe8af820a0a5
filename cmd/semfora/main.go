// Command semfora starts the semfora daemon and manages its cache.
package main

import "github.com/anthropics/semfora/internal/cli"

func main() {
	cli.Execute()
}
