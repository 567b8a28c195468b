package main

import "github.com/mkoepf/ghcrpush/cmd"

func main() {
	cmd.Execute()
}
