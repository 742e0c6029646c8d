package main

import "github.com/mautops/promotion-vote/cmd"

func main() {
	cmd.Execute()
}
