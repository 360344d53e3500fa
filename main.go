package main

import "github.com/frahmantamala/hr-ops/cmd"

func main() {
	cmd.Execute()
}
