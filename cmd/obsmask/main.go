// Command obsmask validates observation datasets against their data model
// and writes a per-element quality mask.
package main

func main() {
	Execute()
}
