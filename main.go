// The main package for the voterstat executable.
package main

import (
	"github.com/JakeFAU/voterstat/cmd"
)

func main() {
	cmd.Execute()
}
