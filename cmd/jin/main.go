// Command jin is the CLI for the phantom version-control overlay: a
// layered commit history that sits beside a host VCS checkout without
// ever touching its commits (spec §1).
package main

func main() {
	Execute()
}
