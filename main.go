package main

import "github.com/kpihub/scmscan/cmd"

func main() {
	cmd.Execute()
}
