package main

import "github.com/pelusa-v/pelusa-chat-client/internal/cli"

func main() {
	cli.Execute()
}
