// Command celebtwin serves the celebrity look-alike API and queries it from
// the command line.
package main

func main() {
	Execute()
}
