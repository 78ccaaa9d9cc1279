package main

import "github.com/tbencze/alpha-pilot/cmd"

func main() {
	cmd.Execute()
}
