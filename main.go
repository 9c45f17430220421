package main

import "github.com/ghyeongl/vaultsync/cmd"

func main() {
	cmd.Execute()
}
