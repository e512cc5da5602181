// This program runs the proof of work chain and its fork set without the
// network so the behavior can be watched from a terminal.
package main

import "github.com/ardanlabs/forkchain/app/tooling/sim/cmd"

func main() {
	cmd.Execute()
}
